package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/gophmail/internal/client/models"
	"github.com/dmitrijs2005/gophmail/internal/client/repositories"
	"github.com/dmitrijs2005/gophmail/internal/common"
	"github.com/dmitrijs2005/gophmail/internal/logging"
)

// FolderService manages local folder records and their sync cursors.
type FolderService interface {
	ListFolders(ctx context.Context, accountID int64) ([]*models.Folder, error)
	CreateFolder(ctx context.Context, accountID int64, serverName, localName string) (*models.Folder, error)
	// EnsureFolder returns the folder, creating it when missing.
	EnsureFolder(ctx context.Context, accountID int64, serverName string) (*models.Folder, error)
	// ImportRemoteFolders creates a record for every remote name not known
	// yet. Individual failures are logged and skipped. Returns the number
	// created.
	ImportRemoteFolders(ctx context.Context, accountID int64, remote []string) int
	Cursor(ctx context.Context, folderID int64) (uint64, error)
}

type folderService struct {
	repos *repositories.Repositories
	log   logging.Logger
}

func NewFolderService(repos *repositories.Repositories, log logging.Logger) FolderService {
	return &folderService{repos: repos, log: log}
}

func (s *folderService) ListFolders(ctx context.Context, accountID int64) ([]*models.Folder, error) {
	return s.repos.Folders.ListByAccount(ctx, accountID)
}

func (s *folderService) CreateFolder(ctx context.Context, accountID int64, serverName, localName string) (*models.Folder, error) {
	serverName = strings.TrimSpace(serverName)
	if serverName == "" {
		return nil, common.Validationf("folder name is required")
	}
	return s.repos.Folders.Save(ctx, &models.Folder{AccountID: accountID, ServerName: serverName, LocalName: localName})
}

func (s *folderService) EnsureFolder(ctx context.Context, accountID int64, serverName string) (*models.Folder, error) {
	f, err := s.repos.Folders.FindByName(ctx, accountID, serverName)
	if err != nil {
		return nil, err
	}
	if f != nil {
		return f, nil
	}
	return s.CreateFolder(ctx, accountID, serverName, "")
}

func (s *folderService) ImportRemoteFolders(ctx context.Context, accountID int64, remote []string) int {
	created := 0
	for _, name := range remote {
		existing, err := s.repos.Folders.FindByName(ctx, accountID, name)
		if err == nil && existing != nil {
			continue
		}
		if _, err := s.CreateFolder(ctx, accountID, name, ""); err != nil {
			s.log.Warn(ctx, "could not create local folder", "account_id", accountID, "folder", name, "err", err)
			continue
		}
		created++
	}
	return created
}

func (s *folderService) Cursor(ctx context.Context, folderID int64) (uint64, error) {
	f, err := s.repos.Folders.Get(ctx, folderID)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, common.NotFoundf("folder %d", folderID)
	}
	return f.LastSyncUID, nil
}
