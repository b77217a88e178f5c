// Package stash integrates the Stash media organizer. Stash exposes a
// GraphQL API: every call is a POST to /graphql with the API key in the
// ApiKey header, and failures arrive as an errors array inside a 200
// response, so the connectivity test inspects the body instead of the
// status code.
package stash

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/framerrr/framerr/integration"
)

// Client is the Stash adapter.
type Client struct {
	*integration.Client
}

var _ integration.Adapter = (*Client)(nil)

// New creates the adapter for one Stash instance. Stash without
// authentication enabled accepts requests with no key, so the API key is
// optional.
func New(inst integration.Instance, logger zerolog.Logger) *Client {
	base := integration.NewClient(inst, logger,
		integration.WithAuth(func(inst integration.Instance, req *http.Request) {
			if inst.APIKey != "" {
				req.Header.Set("ApiKey", inst.APIKey)
			}
		}),
	)
	return &Client{Client: base}
}

// graphqlResponse is the standard GraphQL envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// query posts a GraphQL query and unwraps the envelope. A populated errors
// array on a 200 means the key was rejected or the query refused.
func (c *Client) query(ctx context.Context, query string, out any) error {
	payload, _ := json.Marshal(map[string]string{"query": query})
	body, err := c.Post(ctx, "/graphql", payload,
		integration.WithHeader("Content-Type", "application/json"),
	)
	if err != nil {
		return err
	}

	var resp graphqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return integration.NewError(integration.CodeUnknown, c.Instance(), "decoding graphql response: "+err.Error())
	}
	if len(resp.Errors) > 0 {
		return integration.NewError(integration.CodeAuthFailed, c.Instance(), resp.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return integration.NewError(integration.CodeUnknown, c.Instance(), "decoding graphql data: "+err.Error())
	}
	return nil
}

// Test checks connectivity with the version query. The generic endpoint
// test does not apply here: GraphQL reports failure inside a 200 body.
func (c *Client) Test(ctx context.Context) integration.TestResult {
	var data struct {
		Version struct {
			Version string `json:"version"`
		} `json:"version"`
	}
	if err := c.query(ctx, `query Version { version { version } }`, &data); err != nil {
		ce := integration.Classify(err, c.Instance())
		return integration.TestResult{Message: ce.Message, Error: ce}
	}
	return integration.TestResult{
		Success: true,
		Message: "connection ok",
		Version: data.Version.Version,
	}
}

// Poll fetches the library statistics widget data.
func (c *Client) Poll(ctx context.Context) (any, error) {
	var data struct {
		Stats struct {
			SceneCount     int `json:"scene_count"`
			ImageCount     int `json:"image_count"`
			GalleryCount   int `json:"gallery_count"`
			PerformerCount int `json:"performer_count"`
		} `json:"stats"`
	}
	query := `query Stats { stats { scene_count image_count gallery_count performer_count } }`
	if err := c.query(ctx, query, &data); err != nil {
		return nil, err
	}
	return Snapshot{
		Scenes:     data.Stats.SceneCount,
		Images:     data.Stats.ImageCount,
		Galleries:  data.Stats.GalleryCount,
		Performers: data.Stats.PerformerCount,
	}, nil
}

// Snapshot is the shaped poll composite for a Stash instance.
type Snapshot struct {
	Scenes     int `json:"scenes"`
	Images     int `json:"images"`
	Galleries  int `json:"galleries"`
	Performers int `json:"performers"`
}

// String implements fmt.Stringer for log output.
func (s Snapshot) String() string {
	return fmt.Sprintf("%d scenes, %d images, %d galleries, %d performers", s.Scenes, s.Images, s.Galleries, s.Performers)
}
