// Package directory talks to the core user directory: the external,
// authoritative identity store. The local users table only shadows it for
// notification ownership.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// User is a directory record. The directory is authoritative for email and
// role; nothing else is consumed here.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Directory resolves directory user ids to directory records. Lookup returns
// (nil, nil) when the id does not exist.
type Directory interface {
	Lookup(ctx context.Context, id int64) (*User, error)
}

// Client is the HTTP implementation against the core directory service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient() *Client {
	baseURL := os.Getenv("DIRECTORY_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8090"
	}
	return &Client{
		baseURL: baseURL,
		token:   os.Getenv("DIRECTORY_TOKEN"),
		http:    &http.Client{},
	}
}

func (c *Client) Lookup(ctx context.Context, id int64) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/users/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("X-Api-Key", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status: %d", resp.StatusCode)
	}

	var result User
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response: %v", err)
	}

	return &result, nil
}
