package pubsub

import (
	"regexp"
	"strings"
)

// Channel names shared by every hub instance.
const (
	// ChannelHubBroadcast carries messages that must reach every connection
	// on every instance.
	ChannelHubBroadcast = "hub:broadcast"
)

// Event types.
const (
	EventBroadcastAll = "broadcast_all"
)

var topicSanitizer = strings.NewReplacer(":", "-", "_", "-")

// channelToTopic maps a redis-style channel onto a Kafka topic name.
//
//	"hub:broadcast" -> "hub-broadcast"
func channelToTopic(channel string) string {
	return topicSanitizer.Replace(channel)
}

// patternToTopicRegex maps a redis-style glob onto a librdkafka topic regex.
//
//	"hub:*" -> "^hub-.*$"
func patternToTopicRegex(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(channelToTopic(p))
	}
	return "^" + strings.Join(parts, ".*") + "$"
}
