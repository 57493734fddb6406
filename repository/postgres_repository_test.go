package repository

import (
	"context"
	"testing"

	"neodymium/models"
	"neodymium/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepository_SaveAndLoad(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewPostgresRepository(testDB.DB)
	ctx := context.Background()

	t.Run("empty database", func(t *testing.T) {
		configs, err := repo.LoadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, configs)
	})

	t.Run("save then load", func(t *testing.T) {
		cfg := models.NewGuildConfig("100")
		cfg.RulesMessageID = "1"
		cfg.RolesMessageID = "2"
		cfg.BaseRoleID = "3"
		cfg.EmojiRoles["42"] = "7"
		cfg.EmojiRoles["✨"] = "8"
		require.NoError(t, repo.Save(ctx, cfg))

		configs, err := repo.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, configs, 1)

		loaded := configs[0]
		assert.Equal(t, "100", loaded.GuildID())
		assert.Equal(t, "1", loaded.RulesMessageID)
		assert.Equal(t, "2", loaded.RolesMessageID)
		assert.Equal(t, "3", loaded.BaseRoleID)
		assert.Equal(t, map[string]string{"42": "7", "✨": "8"}, loaded.EmojiRoles)
	})

	t.Run("save replaces previous state", func(t *testing.T) {
		cfg := models.NewGuildConfig("100")
		cfg.RolesMessageID = "2"
		cfg.EmojiRoles["43"] = "9"
		require.NoError(t, repo.Save(ctx, cfg))

		configs, err := repo.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, configs, 1)

		loaded := configs[0]
		assert.Empty(t, loaded.RulesMessageID)
		assert.Empty(t, loaded.BaseRoleID)
		assert.Equal(t, map[string]string{"43": "9"}, loaded.EmojiRoles)
	})

	t.Run("delete removes guild and emoji rows", func(t *testing.T) {
		other := models.NewGuildConfig("200")
		other.RulesMessageID = "5"
		require.NoError(t, repo.Save(ctx, other))

		require.NoError(t, repo.Delete(ctx, "100"))

		configs, err := repo.LoadAll(ctx)
		require.NoError(t, err)
		require.Len(t, configs, 1)
		assert.Equal(t, "200", configs[0].GuildID())

		var emojiRows int
		err = testDB.DB.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM guild_emoji_roles WHERE guild_id = '100'`).Scan(&emojiRows)
		require.NoError(t, err)
		assert.Zero(t, emojiRows)
	})

	t.Run("delete unknown guild", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "999"))
	})
}
