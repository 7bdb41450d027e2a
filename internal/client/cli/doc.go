// Package cli provides the interactive GophMail command-line client.
//
// It wires configuration and the mail core behind a REPL. Typical flow:
// initialize or unlock the master password, start auto-sync, then execute
// user commands until exit.
//
// Key features:
//   - Master password: init, unlock, lock, passwd
//   - Accounts: addaccount, accounts, use, test, setpass, rmaccount
//   - Keys: keygen, importkey, publish, keys
//   - Mail: folders, sync, list, show, send, delete, save
//
// Notifications published by the core (encryption fallbacks, sync results,
// new mail) are printed as they arrive. See App.Run and runREPL.
package cli
