package service

import "neodymium/models"

// Classify decides what a reaction on a message should do for a guild.
// A nil configuration means the guild is not registered and the reaction is ignored.
func Classify(cfg *models.GuildConfig, messageID string, emoji models.Emoji) models.Action {
	if cfg == nil || messageID == "" {
		return models.Action{Kind: models.ActionIgnore}
	}

	if messageID == cfg.RulesMessageID && emoji.Name == models.RulesAcknowledgeEmoji {
		return models.Action{Kind: models.ActionGrantBaseRole}
	}

	if messageID == cfg.RolesMessageID {
		if roleID, ok := cfg.RoleForEmoji(emoji.Key()); ok {
			return models.Action{Kind: models.ActionToggleRole, RoleID: roleID}
		}
	}

	return models.Action{Kind: models.ActionIgnore}
}
