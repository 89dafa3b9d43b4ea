package claims

import (
	"time"

	"persona/internal/persona"
)

// Twitter extracts profile facts from the X/Twitter provider.
type Twitter struct{}

type twitterParams struct {
	ScreenName string `mapstructure:"screen_name"`
	Followers  *int64 `mapstructure:"followers_count"`
	CreatedAt  string `mapstructure:"created_at"`
}

type twitterAttributes struct {
	ScreenName string `json:"screenName,omitempty"`
	Followers  int64  `json:"followers"`
	CreatedAt  string `json:"createdAt,omitempty"`
	VerifiedAt string `json:"verifiedAt"`
}

func (Twitter) Namespace() string { return "twitter" }

func (t Twitter) Extract(params map[string]string, verifiedAt time.Time) (persona.AttributeRecord, error) {
	var in twitterParams
	if err := decodeParams(params, &in); err != nil {
		return persona.AttributeRecord{}, err
	}
	if in.Followers == nil {
		return persona.AttributeRecord{}, &MalformedClaimError{Field: "followers_count", Reason: "is required"}
	}
	return persona.NewAttributeRecord(t.Namespace(), twitterAttributes{
		ScreenName: in.ScreenName,
		Followers:  *in.Followers,
		CreatedAt:  in.CreatedAt,
		VerifiedAt: formatVerifiedAt(verifiedAt),
	})
}

// GitHub extracts account facts from the GitHub provider.
type GitHub struct{}

type githubParams struct {
	Username      string `mapstructure:"username"`
	PublicRepos   *int64 `mapstructure:"public_repos"`
	Contributions *int64 `mapstructure:"contributions"`
}

type githubAttributes struct {
	Username      string `json:"username,omitempty"`
	PublicRepos   int64  `json:"publicRepos"`
	Contributions *int64 `json:"contributions,omitempty"`
	VerifiedAt    string `json:"verifiedAt"`
}

func (GitHub) Namespace() string { return "github" }

func (g GitHub) Extract(params map[string]string, verifiedAt time.Time) (persona.AttributeRecord, error) {
	var in githubParams
	if err := decodeParams(params, &in); err != nil {
		return persona.AttributeRecord{}, err
	}
	if in.PublicRepos == nil {
		return persona.AttributeRecord{}, &MalformedClaimError{Field: "public_repos", Reason: "is required"}
	}
	return persona.NewAttributeRecord(g.Namespace(), githubAttributes{
		Username:      in.Username,
		PublicRepos:   *in.PublicRepos,
		Contributions: in.Contributions,
		VerifiedAt:    formatVerifiedAt(verifiedAt),
	})
}
