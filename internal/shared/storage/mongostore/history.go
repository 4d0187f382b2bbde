package mongostore

import (
	"touropedia/internal/shared/model"
	"touropedia/internal/shared/storage"
)

type historyStore struct {
	collection[model.History]
}

var (
	_ storage.HistoryStore    = (*historyStore)(nil)
	_ storage.UserStore       = (*userStore)(nil)
	_ storage.PersistentStore = (*Store)(nil)
)
