package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

func TestSearchRejectsEmptyQuestion(t *testing.T) {
	store := newFakeVectorStore()
	ensure := &fakeEnsurer{}
	emb := &fakeEmbedder{}
	p := newTestPipelines(store, ensure, emb, &fakeGenerator{}, nil)

	for _, question := range []string{"", "   "} {
		_, err := p.Search(context.Background(), SearchParams{
			Collection: "vids", Namespace: "frames", Question: question,
		})
		var validationErr *core.ValidationError
		require.ErrorAs(t, err, &validationErr)
	}
	assert.Zero(t, ensure.callCount())
	assert.Zero(t, emb.callCount())
	assert.Zero(t, store.queryCalls)
}

func TestSearchTopKDefaultsAndCap(t *testing.T) {
	store := newFakeVectorStore()
	p := newTestPipelines(store, &fakeEnsurer{}, &fakeEmbedder{}, &fakeGenerator{}, nil)

	_, err := p.Search(context.Background(), SearchParams{
		Collection: "vids", Namespace: "frames", Question: "what happens?",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.lastTopK)

	_, err = p.Search(context.Background(), SearchParams{
		Collection: "vids", Namespace: "frames", Question: "what happens?", TopK: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, store.lastTopK)
}

func TestSearchReturnsStoreOrderUntouched(t *testing.T) {
	store := newFakeVectorStore()
	store.queryResult = []core.Match{
		frameMatch("f3", 0.9, 30),
		frameMatch("f1", 0.8, 10),
		frameMatch("f2", 0.7, 20),
	}
	p := newTestPipelines(store, &fakeEnsurer{}, &fakeEmbedder{}, &fakeGenerator{}, nil)

	matches, err := p.Search(context.Background(), SearchParams{
		Collection: "vids", Namespace: "video-1", Question: "what happens?",
	})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "f3", matches[0].ID, "similarity ranking is the store's business")
	assert.Equal(t, "video-1", store.lastNamespace)
}
