package mal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/nyaadere/animatch/internal/cache"
	"github.com/nyaadere/animatch/internal/domain"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <link rel="canonical" href="https://myanimelist.net/anime/121/Fullmetal_Alchemist/characters">
</head>
<body>
  <a href="https://myanimelist.net/character/11/Edward_Elric"><img src="ed.jpg"></a>
  <a href="https://myanimelist.net/character/11/Edward_Elric">Elric, Edward</a>
  <a href="https://myanimelist.net/character/12/Alphonse_Elric">Elric, Alphonse</a>
  <a href="https://myanimelist.net/people/1/Romi_Park">Park, Romi</a>
  <a href="https://myanimelist.net/anime/121/Fullmetal_Alchemist">Back to anime</a>
</body>
</html>`

func TestExtractCandidates(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(samplePage))
	require.NoError(t, err)

	set, malID := extractCandidates(doc)
	assert.Equal(t, 121, malID)

	// The image-only anchor shares its href with the text anchor; the
	// pool holds the link once, under the text name.
	require.Len(t, set.Characters, 2)
	assert.Equal(t, "Elric, Edward", set.Characters[0].Name)
	assert.Equal(t, "https://myanimelist.net/character/11/Edward_Elric", set.Characters[0].Link)
	assert.Equal(t, "Elric, Alphonse", set.Characters[1].Name)

	require.Len(t, set.People, 1)
	assert.Equal(t, "Park, Romi", set.People[0].Name)
}

func TestExtractCandidatesNotACharacterPage(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><body><p>hello</p></body></html>`))
	require.NoError(t, err)

	set, malID := extractCandidates(doc)
	assert.Zero(t, malID)
	assert.Empty(t, set.Characters)
	assert.Empty(t, set.People)
}

// mapStore is a minimal KVStore for exercising the migration end to end.
type mapStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mapStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func TestMigrateHTMLCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "page1.html"), []byte(samplePage), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.html"), []byte("<html><body>nothing here</body></html>"), 0644))

	store := &mapStore{data: make(map[string]string)}
	c := cache.New(zerolog.Nop(), store, nil, nil)

	err := MigrateHTMLCache(ctx, dir, c, cache.DefaultOptions(), zerolog.Nop())
	require.NoError(t, err)

	entry := c.Get(ctx, "mal:characters:121")
	require.NotNil(t, entry)

	set := &domain.CandidateSet{}
	require.NoError(t, json.Unmarshal(entry.Data, set))
	assert.Equal(t, 121, set.MalID)
	assert.Len(t, set.Characters, 2)
	assert.Len(t, set.People, 1)
}
