package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const fallbackSTUN = "stun:stun.l.google.com:19302"

type WebRTCConfig struct {
	ICEServers []ICEServerConfig `mapstructure:"ice_servers"`
	TurnKeyID  string            `mapstructure:"turn_key_id"`
	TurnKey    string            `mapstructure:"turn_key"`
	TurnTTL    time.Duration     `mapstructure:"turn_ttl"`
}

type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

// ICEServer is the shape browsers expect in RTCConfiguration.iceServers.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// TURNEnabled reports whether Cloudflare TURN credentials are configured.
func (c *WebRTCConfig) TURNEnabled() bool {
	return c.TurnKeyID != "" && c.TurnKey != ""
}

// StaticICEServers returns the configured servers with a public STUN server
// prepended when none is present.
func (c *WebRTCConfig) StaticICEServers() []ICEServer {
	servers := make([]ICEServer, 0, len(c.ICEServers)+1)
	for _, s := range c.ICEServers {
		servers = append(servers, ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return withSTUNFallback(servers)
}

// GetICEServers returns StaticICEServers plus short-lived Cloudflare TURN
// credentials when configured. A TURN failure is returned alongside the
// static list so callers can log it and carry on.
func (c *WebRTCConfig) GetICEServers(ctx context.Context, client *http.Client) ([]ICEServer, error) {
	servers := c.StaticICEServers()
	if !c.TURNEnabled() {
		return servers, nil
	}

	ttl := c.TurnTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	turn, err := fetchCloudflareTURN(ctx, client, c.TurnKeyID, c.TurnKey, ttl)
	if err != nil {
		return servers, err
	}
	return append(servers, *turn), nil
}

func withSTUNFallback(servers []ICEServer) []ICEServer {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "stun:") {
				return servers
			}
		}
	}
	return append([]ICEServer{{URLs: []string{fallbackSTUN}}}, servers...)
}

type cloudflareTURNResponse struct {
	ICEServers struct {
		URLs       []string `json:"urls"`
		Username   string   `json:"username"`
		Credential string   `json:"credential"`
	} `json:"iceServers"`
}

var cloudflareTURNEndpoint = "https://rtc.live.cloudflare.com/v1/turn/keys/%s/credentials/generate"

func fetchCloudflareTURN(ctx context.Context, client *http.Client, keyID, key string, ttl time.Duration) (*ICEServer, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	body, _ := json.Marshal(map[string]int64{"ttl": int64(ttl.Seconds())})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf(cloudflareTURNEndpoint, keyID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call TURN API: %w", err)
	}
	defer resp.Body.Close()

	// Cloudflare answers 201 on success.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("TURN API returned status %d: %s", resp.StatusCode, string(msg))
	}

	var turnResp cloudflareTURNResponse
	if err := json.NewDecoder(resp.Body).Decode(&turnResp); err != nil {
		return nil, fmt.Errorf("failed to decode TURN response: %w", err)
	}

	return &ICEServer{
		URLs:       turnResp.ICEServers.URLs,
		Username:   turnResp.ICEServers.Username,
		Credential: turnResp.ICEServers.Credential,
	}, nil
}
