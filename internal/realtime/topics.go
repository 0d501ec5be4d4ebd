package realtime

import (
	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/models"
)

// TopicPattern matches every topic this package names. The redis relay
// pattern-subscribes to it.
const TopicPattern = "private-*"

// Topic names are pure functions of their ids, so any authorized
// subscriber can derive the one it needs without a lookup.

func ChannelTopic(orgID, channelID uuid.UUID) string {
	return "private-org-" + orgID.String() + "-channel-" + channelID.String()
}

func ConversationTopic(orgID, conversationID uuid.UUID) string {
	return "private-org-" + orgID.String() + "-conversation-" + conversationID.String()
}

func UserTopic(userID uuid.UUID) string {
	return "private-user-" + userID.String()
}

// ScopeTopic returns the topic messages in scope are published to.
func ScopeTopic(orgID uuid.UUID, scope models.Scope) string {
	if scope.IsConversation() {
		return ConversationTopic(orgID, scope.ID())
	}
	return ChannelTopic(orgID, scope.ID())
}
