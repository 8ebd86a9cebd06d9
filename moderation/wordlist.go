package moderation

import (
	_ "embed"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

//go:embed wordlist.txt
var embeddedWordlist string

const blacklistPrefix = "blacklist:"

// DefaultWords returns the embedded forbidden-word list, comments and
// blank lines stripped.
func DefaultWords() []string {
	lines := strings.Split(embeddedWordlist, "\n")
	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		word := strings.TrimSpace(line)
		if word == "" || strings.HasPrefix(word, "#") {
			return "", false
		}
		return word, true
	})
}

// LoadWords merges the embedded defaults with the operator-managed
// blacklist stored in badger. Words live in the keys, not the values.
func LoadWords(db *badger.DB) ([]string, error) {
	words := DefaultWords()
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(blacklistPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			words = append(words, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Uniq(words), nil
}

// AddWord persists one blacklist entry.
func AddWord(db *badger.DB, word string) error {
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blacklistPrefix+word), nil)
	})
}
