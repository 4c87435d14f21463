//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"
	"strconv"

	"chathub/domain"

	"github.com/blugelabs/bluge"
)

type ISearchRepository interface {
	Index(message domain.Message) error
	Search(ctx context.Context, chatID domain.ChatID, query string, limit int) ([]domain.MessageID, error)
}

// SearchRepository maintains a Bluge full-text index over message
// content, scoped per chat through a keyword field.
type SearchRepository struct {
	writer *bluge.Writer
}

func NewSearchRepository(writer *bluge.Writer) *SearchRepository {
	return &SearchRepository{writer: writer}
}

func (r *SearchRepository) Index(message domain.Message) error {
	doc := bluge.NewDocument(strconv.FormatInt(int64(message.ID), 10)).
		AddField(bluge.NewTextField("content", message.Content)).
		AddField(bluge.NewKeywordField("chat_id", strconv.FormatInt(int64(message.ChatID), 10)))
	return r.writer.Update(doc.ID(), doc)
}

// Search returns matching message ids for one chat, best first.
func (r *SearchRepository) Search(ctx context.Context, chatID domain.ChatID, query string, limit int) ([]domain.MessageID, error) {
	if limit <= 0 {
		limit = 10
	}

	reader, err := r.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("content")).
		AddMust(bluge.NewTermQuery(strconv.FormatInt(int64(chatID), 10)).SetField("chat_id"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, err
	}

	var ids []domain.MessageID
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := strconv.ParseInt(string(value), 10, 64); parseErr == nil {
					ids = append(ids, domain.MessageID(id))
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}
