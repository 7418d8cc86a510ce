package lib

import (
	"fmt"
	"log"
	"os"

	"github.com/pusher/pusher-http-go/v5"
)

var pusherClient *pusher.Client

func GetPusherClient() *pusher.Client {
	if pusherClient != nil {
		return pusherClient
	}
	pusherClient = &pusher.Client{
		AppID:   os.Getenv("PUSHER_APP_ID"),
		Key:     os.Getenv("PUSHER_KEY"),
		Secret:  os.Getenv("PUSHER_SECRET"),
		Cluster: os.Getenv("PUSHER_CLUSTER"),
	}
	return pusherClient
}

// NewPusherClient Replace pusher instance with custom client implementation
func NewPusherClient(c *pusher.Client) *pusher.Client {
	pusherClient = c
	return pusherClient
}

// PushPlatformEvent sends a realtime event to a platform's private channel.
// Push failures are logged and swallowed, a payment must never fail because
// the dashboard could not be notified. Declared as a var so tests can swap
// it out.
var PushPlatformEvent = func(platformID uint, event string, data map[string]any) {
	client := GetPusherClient()
	channel := ChannelForPlatform(platformID)
	if err := client.Trigger(channel, event, data); err != nil {
		log.Printf("[pusher] Error triggering %s on %s: %s\n", event, channel, err.Error())
	}
}

func ChannelForPlatform(platformID uint) string {
	return fmt.Sprintf("private-platform-%d", platformID)
}
