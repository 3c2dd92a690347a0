package kafkax

import (
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the canonical metadata carried on Kafka messages across services.
type EventMeta struct {
	EventID   string
	EventType string
}

// ExtractEventMeta reads event_id/event_type headers. Producers that predate the
// headers are still deduplicated by partition offset.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, "event_id")
	eventType := HeaderValue(msg.Headers, "event_type")
	if eventID == "" && len(msg.Key) > 0 {
		eventID = string(msg.Key)
	}
	if eventID == "" {
		eventID = msg.Topic + ":" + itoa(msg.Partition) + ":" + itoa64(msg.Offset)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func itoa(n int) string { return itoa64(int64(n)) }

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}
