// CLAUDE:SUMMARY Normalized record types produced by the export parser: Plurk, Response.
package backup

// Plurk is a normalized top-level post from the export.
// Optional fields are pointers; nil means the export omitted them.
type Plurk struct {
	ID            int64   `json:"id"`
	BaseID        string  `json:"base_id"` // base-36 permalink id, derived from ID when absent
	Content       *string `json:"content_raw"`
	Posted        *string `json:"posted"`
	ResponseCount *int64  `json:"response_count"`
	Qualifier     *string `json:"qualifier"`
}

// Response is a normalized reply attached to a Plurk.
// BaseID references the parent plurk's permalink id; the parent may not be
// in the store yet (referential integrity is advisory).
type Response struct {
	ID          int64   `json:"id"`
	BaseID      string  `json:"base_id"`
	Content     *string `json:"content_raw"`
	Posted      *string `json:"posted"`
	UserID      *int64  `json:"user_id"`
	UserNick    *string `json:"user_nick"`
	UserDisplay *string `json:"user_display"`
}
