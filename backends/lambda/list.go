package lambda

import (
	"context"
	"iter"
	"strings"

	"github.com/dadevel/lemma/api"
)

// List enumerates lemma instances, following pagination markers until the
// platform reports the last page. Only one page is held in memory. A listing
// error is yielded once and ends the sequence.
func (m *Manager) List(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		marker := ""
		for {
			page, err := m.platform.ListFunctions(ctx, marker)
			if err != nil {
				yield("", err)
				return
			}
			for _, name := range page.Names {
				if !strings.HasPrefix(name, api.NamePrefix) {
					continue
				}
				if !yield(name, nil) {
					return
				}
			}
			if page.NextMarker == "" {
				return
			}
			marker = page.NextMarker
		}
	}
}
