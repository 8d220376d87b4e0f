package store

import "strings"

// Redis key layout. Documents are JSON strings; indexes are sets and sorted sets.
const (
	competitiveKey   = "acct:competitive"
	ratingKey        = "pvp:rating"
	alliancePowerKey = "ally:power"
	giftExpiryKey    = "gift:expiry"
)

func AccountKey(id string) string     { return "acct:" + id }
func ProgressionKey(id string) string { return "acct:" + id + ":prog" }
func AllianceKey(id string) string    { return "ally:" + id }
func GiftKey(id string) string        { return "gift:" + id }
func InboxKey(accountID string) string {
	return "gift:inbox:" + accountID
}

// AllianceNameKey and AllianceTagKey reserve a name or tag case-insensitively.
func AllianceNameKey(name string) string {
	return "ally:name:" + strings.ToLower(strings.TrimSpace(name))
}

func AllianceTagKey(tag string) string {
	return "ally:tag:" + strings.ToUpper(strings.TrimSpace(tag))
}

func CompetitiveKey() string   { return competitiveKey }
func RatingKey() string        { return ratingKey }
func AlliancePowerKey() string { return alliancePowerKey }
func GiftExpiryKey() string    { return giftExpiryKey }
