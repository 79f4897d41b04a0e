package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookMentions/internal/config"
	"BookMentions/internal/domain"
	"BookMentions/internal/infrastructure/objectstore"
)

type recordingNotifier struct {
	subjects []string
	err      error
}

func (n *recordingNotifier) Alert(_ context.Context, subject, _ string) error {
	n.subjects = append(n.subjects, subject)
	return n.err
}

func TestAlertFanoutReachesEveryChannel(t *testing.T) {
	t.Parallel()

	failing := &recordingNotifier{err: errors.New("smtp down")}
	ok := &recordingNotifier{}

	err := alertFanout{failing, ok}.Alert(context.Background(), "Queues Are Not Empty", "prepbatch.fifo has 3 messages")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel 0: smtp down")
	assert.Equal(t, []string{"Queues Are Not Empty"}, ok.subjects)
	assert.Equal(t, []string{"Queues Are Not Empty"}, failing.subjects)
}

func TestLoadSecrets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing object keeps config", func(t *testing.T) {
		t.Parallel()
		var cfg config.Config
		cfg.Storage.SecretsKey = "script/config/secrets.yaml"
		require.NoError(t, loadSecrets(ctx, objectstore.NewMemoryStore(), &cfg))
		assert.Empty(t, cfg.Twitter.Bearer)
	})

	t.Run("fills empty credentials", func(t *testing.T) {
		t.Parallel()
		store := objectstore.NewMemoryStore()
		require.NoError(t, store.Put(ctx, "secrets.yaml", []byte("twitter:\n  bearer: from-bucket\n"), "application/yaml"))

		var cfg config.Config
		cfg.Storage.SecretsKey = "secrets.yaml"
		require.NoError(t, loadSecrets(ctx, store, &cfg))
		assert.Equal(t, "from-bucket", cfg.Twitter.Bearer)
	})
}

func TestConfiguredRankerKeepsDefaultRules(t *testing.T) {
	t.Setenv("BOOKMENTIONS_CONFIG", "")

	rows := []domain.JoinedBook{
		{
			BookRecord: domain.BookRecord{TitleShort: "1984", Authors: "Orwell, George", DatePublished: "1961-01-01", Query: "(1984%20george%20orwell)"},
			TotalCount: 90,
		},
		{
			BookRecord: domain.BookRecord{TitleShort: "Frozen", Authors: "Walt Disney Company", DatePublished: "2013", Query: "(company%20disney%20frozen%20walt)"},
			TotalCount: 80,
		},
	}

	for name, cfg := range map[string]config.RankingConfig{
		"loaded defaults": config.Load().Ranking,
		"empty section":   {FinalSize: 100},
	} {
		t.Run(name, func(t *testing.T) {
			ranked := newRanker(cfg).Rank(rows, nil)
			require.Len(t, ranked, 1, "denylisted author must be dropped")
			assert.Equal(t, "1984", ranked[0].ShortenedTitle)
			assert.Equal(t, "George Orwell", ranked[0].Authors)
			assert.Equal(t, 1949, ranked[0].Year)
		})
	}
}
