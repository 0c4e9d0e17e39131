package utils

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateMessageID creates a fresh RFC 5322 message id of the shape
// <uuid@sender-domain> for an outbound message.
func GenerateMessageID(senderAddress string) string {
	domain := ExtractDomainFromEmail(senderAddress)
	if domain == "" {
		domain = "localhost"
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}
