package repository

import (
	"context"
	"fmt"

	"neodymium/database"
	"neodymium/models"
	"neodymium/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// PostgresRepository stores guild configurations in the guild_configs and
// guild_emoji_roles tables
type PostgresRepository struct {
	db *database.DB
	q  Queryable
}

var _ service.GuildConfigRepository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new postgres-backed guild config repository
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db.Pool}
}

// LoadAll retrieves every stored guild configuration
func (r *PostgresRepository) LoadAll(ctx context.Context) ([]*models.GuildConfig, error) {
	query := `
		SELECT guild_id, rules_message_id, roles_message_id, base_role_id
		FROM guild_configs
		ORDER BY guild_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query guild configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.GuildConfig
	byGuild := make(map[string]*models.GuildConfig)
	for rows.Next() {
		var guildID string
		var rulesMessageID, rolesMessageID, baseRoleID *string
		if err := rows.Scan(&guildID, &rulesMessageID, &rolesMessageID, &baseRoleID); err != nil {
			return nil, fmt.Errorf("failed to scan guild config: %w", err)
		}

		cfg := models.NewGuildConfig(guildID)
		cfg.RulesMessageID = derefString(rulesMessageID)
		cfg.RolesMessageID = derefString(rolesMessageID)
		cfg.BaseRoleID = derefString(baseRoleID)

		configs = append(configs, cfg)
		byGuild[guildID] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating guild configs: %w", err)
	}

	emojiQuery := `
		SELECT guild_id, emoji_id, role_id
		FROM guild_emoji_roles
	`

	emojiRows, err := r.q.Query(ctx, emojiQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query emoji roles: %w", err)
	}
	defer emojiRows.Close()

	for emojiRows.Next() {
		var guildID, emojiID, roleID string
		if err := emojiRows.Scan(&guildID, &emojiID, &roleID); err != nil {
			return nil, fmt.Errorf("failed to scan emoji role: %w", err)
		}

		cfg, ok := byGuild[guildID]
		if !ok {
			log.WithFields(log.Fields{
				"guildID": guildID,
				"emojiID": emojiID,
			}).Warn("Skipping emoji role without guild config")
			continue
		}
		cfg.EmojiRoles[emojiID] = roleID
	}
	if err := emojiRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emoji roles: %w", err)
	}

	return configs, nil
}

// Save replaces the stored configuration for cfg's guild in a single transaction
func (r *PostgresRepository) Save(ctx context.Context, cfg *models.GuildConfig) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		upsert := `
			INSERT INTO guild_configs (guild_id, rules_message_id, roles_message_id, base_role_id, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (guild_id) DO UPDATE
			SET rules_message_id = EXCLUDED.rules_message_id,
			    roles_message_id = EXCLUDED.roles_message_id,
			    base_role_id = EXCLUDED.base_role_id,
			    updated_at = NOW()
		`

		_, err := tx.Exec(ctx, upsert,
			cfg.GuildID(),
			nullableString(cfg.RulesMessageID),
			nullableString(cfg.RolesMessageID),
			nullableString(cfg.BaseRoleID),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert guild config %s: %w", cfg.GuildID(), err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM guild_emoji_roles WHERE guild_id = $1`, cfg.GuildID()); err != nil {
			return fmt.Errorf("failed to clear emoji roles for guild %s: %w", cfg.GuildID(), err)
		}

		if len(cfg.EmojiRoles) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, emoji := range cfg.EmojiKeys() {
			batch.Queue(`
				INSERT INTO guild_emoji_roles (guild_id, emoji_id, role_id)
				VALUES ($1, $2, $3)
			`, cfg.GuildID(), emoji, cfg.EmojiRoles[emoji])
		}

		results := tx.SendBatch(ctx, batch)
		for range cfg.EmojiRoles {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert emoji role for guild %s: %w", cfg.GuildID(), err)
			}
		}
		return results.Close()
	})
}

// Delete removes the stored configuration for a guild. Emoji rows cascade.
func (r *PostgresRepository) Delete(ctx context.Context, guildID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM guild_configs WHERE guild_id = $1`, guildID); err != nil {
		return fmt.Errorf("failed to delete guild config %s: %w", guildID, err)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
