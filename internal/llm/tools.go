package llm

// GroupMembersToolName matches the tool exposed by the impression plugin.
const GroupMembersToolName = "get_group_members"

// GetImpressionTools returns the tools offered to the model in group chats.
func GetImpressionTools() []Tool {
	return []Tool{
		{
			Type: "function",
			Function: Function{
				Name:        GroupMembersToolName,
				Description: "Returns the recorded members of the current group chat with their nickname, group nickname, role, title, gender, age and the bot's attitude toward them. Use it when the user asks about people in the group.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
					"required":   []string{},
				},
			},
		},
	}
}
