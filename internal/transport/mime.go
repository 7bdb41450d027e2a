package transport

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// NewMessageID returns an RFC 5322 Message-ID in the sender's domain.
func NewMessageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndexByte(from, '@'); i >= 0 && i < len(from)-1 {
		domain = from[i+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func addressList(emails []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(emails))
	for _, e := range emails {
		out = append(out, &mail.Address{Address: e})
	}
	return out
}

// BuildMessage renders msg as RFC 5322 bytes. Bcc is never written.
func BuildMessage(msg *OutgoingMessage) ([]byte, error) {
	var h mail.Header
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	h.SetDate(date)
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: msg.FromName, Address: msg.From}})
	h.SetAddressList("To", addressList(msg.To))
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", addressList(msg.Cc))
	}
	id := msg.MessageID
	if id == "" {
		id = NewMessageID(msg.From)
	}
	h.Set("Message-Id", id)

	var buf bytes.Buffer
	var mw *mail.Writer
	var iw *mail.InlineWriter
	var err error

	if len(msg.Attachments) == 0 {
		iw, err = mail.CreateInlineWriter(&buf, h)
	} else {
		mw, err = mail.CreateWriter(&buf, h)
		if err == nil {
			iw, err = mw.CreateInline()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}

	if err := writeInline(iw, "text/plain", msg.BodyText); err != nil {
		return nil, err
	}
	if msg.BodyHTML != "" {
		if err := writeInline(iw, "text/html", msg.BodyHTML); err != nil {
			return nil, err
		}
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}

	if mw != nil {
		for _, att := range msg.Attachments {
			var ah mail.AttachmentHeader
			ah.SetFilename(att.FileName)
			ct := att.ContentType
			if ct == "" {
				ct = "application/octet-stream"
			}
			ah.SetContentType(ct, nil)

			w, err := mw.CreateAttachment(ah)
			if err != nil {
				return nil, fmt.Errorf("attachment %s: %w", att.FileName, err)
			}
			if _, err := w.Write(att.Data); err != nil {
				return nil, fmt.Errorf("attachment %s: %w", att.FileName, err)
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeInline(iw *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := iw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return err
	}
	return w.Close()
}

// ParseMessage fills the body and attachment fields of dst from raw RFC 5322
// bytes. Unparseable input is kept as the plain text body.
func ParseMessage(dst *RawMessage, raw []byte) {
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		dst.BodyText = string(raw)
		return
	}

	if dst.MessageID == "" || dst.Subject == "" || dst.From == "" {
		fillHeader(dst, mail.Header{Header: entity.Header})
	}

	part := 0
	if mr := entity.MultipartReader(); mr != nil {
		parseMultipart(dst, mr, &part)
	} else {
		parseSinglePart(dst, entity)
	}
	dst.HasAttachments = len(dst.Attachments) > 0
}

func fillHeader(dst *RawMessage, h mail.Header) {
	if dst.Subject == "" {
		dst.Subject, _ = h.Subject()
	}
	if dst.MessageID == "" {
		if id, err := h.MessageID(); err == nil && id != "" {
			dst.MessageID = "<" + id + ">"
		}
	}
	if dst.From == "" {
		if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
			dst.From = from[0].Address
		}
	}
	if dst.Date.IsZero() {
		dst.Date, _ = h.Date()
	}
	if len(dst.To) == 0 {
		if to, err := h.AddressList("To"); err == nil {
			for _, a := range to {
				dst.To = append(dst.To, a.Address)
			}
		}
	}
	if len(dst.Cc) == 0 {
		if cc, err := h.AddressList("Cc"); err == nil {
			for _, a := range cc {
				dst.Cc = append(dst.Cc, a.Address)
			}
		}
	}
}

func parseMultipart(dst *RawMessage, mr gomessage.MultipartReader, part *int) {
	for {
		p, err := mr.NextPart()
		if err != nil {
			return
		}
		*part++
		ct, _, _ := p.Header.ContentType()
		disp, _, _ := p.Header.ContentDisposition()

		switch {
		case strings.HasPrefix(ct, "multipart/"):
			if nested := p.MultipartReader(); nested != nil {
				parseMultipart(dst, nested, part)
			}

		case disp != "attachment" && ct == "text/plain" && dst.BodyText == "":
			if body, err := io.ReadAll(p.Body); err == nil {
				dst.BodyText = string(body)
			}

		case disp != "attachment" && ct == "text/html" && dst.BodyHTML == "":
			if body, err := io.ReadAll(p.Body); err == nil {
				dst.BodyHTML = string(body)
			}

		default:
			ah := mail.AttachmentHeader{Header: p.Header}
			name, _ := ah.Filename()
			att := RawAttachment{FileName: name, ContentType: ct, Size: -1, PartIndex: *part}
			if body, err := io.ReadAll(p.Body); err == nil {
				att.Data = body
				att.Size = int64(len(body))
			}
			dst.Attachments = append(dst.Attachments, att)
		}
	}
}

func parseSinglePart(dst *RawMessage, entity *gomessage.Entity) {
	ct, _, _ := entity.Header.ContentType()
	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return
	}
	if ct == "text/html" {
		dst.BodyHTML = string(body)
	} else {
		dst.BodyText = string(body)
	}
}
