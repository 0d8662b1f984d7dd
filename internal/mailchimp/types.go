package mailchimp

// StatusSubscribed is the only member status the sync reads
const StatusSubscribed = "subscribed"

// MaxPageSize is the largest count the members endpoint honours
const MaxPageSize = 1000

// Member is one audience member as returned by the Marketing API.
// Only the fields the sync needs are decoded.
type Member struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Status       string `json:"status"`
	TimestampOpt string `json:"timestamp_opt"`
}

// MembersResponse is one page of GET /lists/{list_id}/members
type MembersResponse struct {
	Members    []Member `json:"members"`
	ListID     string   `json:"list_id"`
	TotalItems int      `json:"total_items"`
}

// PingResponse is returned by GET /ping
type PingResponse struct {
	HealthStatus string `json:"health_status"`
}

// Problem is the RFC 7807 error document the API returns on failure
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
}
