// pkg/registry/schema.go
package registry

type CategoryRegistry struct {
	Version     string         `json:"version"`
	LastUpdated string         `json:"lastUpdated"`
	Categories  []CategoryInfo `json:"categories"`
}

// CategoryInfo is the static metadata of one notification category.
type CategoryInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Group       string `json:"group"`
	Channel     string `json:"channel"`
	Importance  string `json:"importance"`
	TemplateID  string `json:"templateId,omitempty"`
}

// Channel ids the local surface groups notifications under.
const (
	ChannelSocial     = "social"
	ChannelBookClubs  = "bookClubs"
	ChannelChallenges = "challenges"
	ChannelSystem     = "system"
	ChannelDefault    = "default"
)

const (
	ImportanceNormal = "normal"
	ImportanceHigh   = "high"
)

var channelImportance = map[string]string{
	ChannelSocial:     ImportanceNormal,
	ChannelBookClubs:  ImportanceHigh,
	ChannelChallenges: ImportanceNormal,
	ChannelSystem:     ImportanceHigh,
	ChannelDefault:    ImportanceNormal,
}

// ImportanceOf returns the importance a channel is registered with.
func ImportanceOf(channel string) string {
	if imp, ok := channelImportance[channel]; ok {
		return imp
	}
	return ImportanceNormal
}
