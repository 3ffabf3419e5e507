// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/proxima-tui/internal/model"
)

// =============================================================================
// ITEM INTERFACE
// =============================================================================

// Item is any entity that can live in a ledger.
type Item interface {
	// Category returns the collection the entity belongs to.
	Category() Category
	// ID returns the entity's positional identity.
	ID() ItemID
	// SetID restamps the entity. It panics when id names another category.
	SetID(id ItemID)
	// Clone returns a deep copy.
	Clone() Item
	// Label is a short human-readable name.
	Label() string
}

// NewItem returns an empty entity of the given category.
func NewItem(c Category) (Item, error) {
	switch c {
	case CategoryChat:
		return &Chat{}, nil
	case CategoryTag:
		return &Tag{}, nil
	case CategoryAccessMode:
		return &AccessMode{}, nil
	case CategoryChatConfig:
		return &ChatConfig{}, nil
	case CategoryDevice:
		return &Device{}, nil
	case CategoryFile:
		return &File{}, nil
	case CategoryFolder:
		return &Folder{}, nil
	case CategoryNotification:
		return &Notification{}, nil
	case CategoryUserData:
		return &UserData{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
}

// stamp writes id.Pos into pos after checking the category.
func stamp(want Category, pos *int, id ItemID) {
	if id.Category != want {
		panic(fmt.Sprintf("Wrong kind of id: %s for a %s", id, want))
	}
	*pos = id.Pos
}

// NormalizeName trims and NFC-normalises a user supplied name so that
// visually identical names compare equal.
func NormalizeName(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr is a convenience for optional position fields.
func IntPtr(v int) *int {
	return &v
}

// =============================================================================
// CHAT
// =============================================================================

// Chat is a conversation with its transcript and the access modes that can see it.
type Chat struct {
	Pos              int           `json:"pos"`
	Title            string        `json:"title,omitempty"`
	Context          model.Context `json:"context"`
	AccessModes      Positions     `json:"access_modes"`
	Config           *int          `json:"config,omitempty"`
	LatestUsedConfig *ChatConfig   `json:"latest_used_config,omitempty"`
	Device           int           `json:"device"`
	CreatedAt        time.Time     `json:"created_at"`
}

// NewChat creates a chat visible in accessMode and seeded with context.
func NewChat(accessMode int, context model.Context) *Chat {
	return &Chat{
		Context:     context,
		AccessModes: NewPositions(accessMode),
		CreatedAt:   time.Now(),
	}
}

func (c *Chat) Category() Category { return CategoryChat }
func (c *Chat) ID() ItemID { return ChatID(c.Pos) }
func (c *Chat) SetID(id ItemID) { stamp(CategoryChat, &c.Pos, id) }

// Label returns the explicit title or one derived from the transcript.
func (c *Chat) Label() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Context.Title()
}

func (c *Chat) Clone() Item {
	out := *c
	out.Context = c.Context.Clone()
	out.AccessModes = c.AccessModes.Clone()
	out.Config = cloneInt(c.Config)
	if c.LatestUsedConfig != nil {
		out.LatestUsedConfig = c.LatestUsedConfig.Clone().(*ChatConfig)
	}
	return &out
}

// =============================================================================
// TAG
// =============================================================================

// Tag is a label that can be nested under a parent tag.
type Tag struct {
	Pos         int    `json:"pos"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parent      *int   `json:"parent,omitempty"`
}

// NewTag creates a tag with a normalised name.
func NewTag(name, description string, parent *int) *Tag {
	return &Tag{
		Name:        NormalizeName(name),
		Description: strings.TrimSpace(description),
		Parent:      cloneInt(parent),
	}
}

func (t *Tag) Category() Category { return CategoryTag }
func (t *Tag) ID() ItemID { return TagID(t.Pos) }
func (t *Tag) SetID(id ItemID) { stamp(CategoryTag, &t.Pos, id) }
func (t *Tag) Label() string { return t.Name }

func (t *Tag) Clone() Item {
	out := *t
	out.Parent = cloneInt(t.Parent)
	return &out
}

// =============================================================================
// ACCESS MODE
// =============================================================================

// AccessMode is a named visibility scope grouping a set of tags.
type AccessMode struct {
	Pos  int       `json:"pos"`
	Name string    `json:"name"`
	Tags Positions `json:"tags"`
}

// DefaultAccessModeName names the access mode every ledger starts with.
const DefaultAccessModeName = "Global"

// NewAccessMode creates an access mode holding tags.
func NewAccessMode(name string, tags ...int) *AccessMode {
	return &AccessMode{Name: NormalizeName(name), Tags: NewPositions(tags...)}
}

func (a *AccessMode) Category() Category { return CategoryAccessMode }
func (a *AccessMode) ID() ItemID { return AccessModeID(a.Pos) }
func (a *AccessMode) SetID(id ItemID) { stamp(CategoryAccessMode, &a.Pos, id) }
func (a *AccessMode) Label() string { return a.Name }

func (a *AccessMode) Clone() Item {
	out := *a
	out.Tags = a.Tags.Clone()
	return &out
}

// =============================================================================
// CHAT CONFIGURATION
// =============================================================================

// SettingKind enumerates the chat settings a configuration can carry.
type SettingKind string

const (
	SettingTemperature           SettingKind = "temperature"
	SettingSystemPrompt          SettingKind = "system_prompt"
	SettingPrePrompt             SettingKind = "pre_prompt"
	SettingPrePromptBeforeLatest SettingKind = "pre_prompt_before_latest"
	SettingMaxContextLength      SettingKind = "max_context_length"
	SettingResponseTokenLimit    SettingKind = "response_token_limit"
	SettingTool                  SettingKind = "tool"
	SettingAccessMode            SettingKind = "access_mode"
)

// ChatSetting is one tagged setting. Value holds numeric settings, Prompt
// the prompt settings and Tool the tool name.
type ChatSetting struct {
	Kind   SettingKind `json:"kind"`
	Value  int         `json:"value,omitempty"`
	Prompt *model.Part `json:"prompt,omitempty"`
	Tool   string      `json:"tool,omitempty"`
}

func Temperature(v int) ChatSetting { return ChatSetting{Kind: SettingTemperature, Value: v} }
func MaxContextLength(v int) ChatSetting { return ChatSetting{Kind: SettingMaxContextLength, Value: v} }
func ResponseTokenLimit(v int) ChatSetting { return ChatSetting{Kind: SettingResponseTokenLimit, Value: v} }
func ToolSetting(name string) ChatSetting { return ChatSetting{Kind: SettingTool, Tool: name} }
func AccessModeSetting(v int) ChatSetting { return ChatSetting{Kind: SettingAccessMode, Value: v} }

// PromptSetting builds one of the three prompt settings.
func PromptSetting(kind SettingKind, text string) ChatSetting {
	p := model.NewSystemPart(text)
	return ChatSetting{Kind: kind, Prompt: &p}
}

// Title names the setting for display.
func (s ChatSetting) Title() string {
	switch s.Kind {
	case SettingTemperature:
		return "Temperature"
	case SettingSystemPrompt:
		return "System prompt"
	case SettingPrePrompt:
		return "Pre-prompt"
	case SettingPrePromptBeforeLatest:
		return "Pre-prompt before latest"
	case SettingMaxContextLength:
		return "Max context length"
	case SettingResponseTokenLimit:
		return "Response token limit"
	case SettingTool:
		return "Tool: " + s.Tool
	case SettingAccessMode:
		return "Access mode"
	}
	return string(s.Kind)
}

// Clone returns a deep copy.
func (s ChatSetting) Clone() ChatSetting {
	if s.Prompt != nil {
		p := s.Prompt.Clone()
		s.Prompt = &p
	}
	return s
}

// ChatConfig is a named, ordered list of settings applied to chats.
type ChatConfig struct {
	Pos         int           `json:"pos"`
	Name        string        `json:"name"`
	Settings    []ChatSetting `json:"settings"`
	AccessModes Positions     `json:"access_modes"`
	LastUpdated time.Time     `json:"last_updated"`
}

// NewChatConfig creates an empty configuration visible in accessMode.
func NewChatConfig(name string, accessMode int) *ChatConfig {
	return &ChatConfig{
		Name:        NormalizeName(name),
		AccessModes: NewPositions(accessMode),
		LastUpdated: time.Now(),
	}
}

func (c *ChatConfig) Category() Category { return CategoryChatConfig }
func (c *ChatConfig) ID() ItemID { return ChatConfigID(c.Pos) }
func (c *ChatConfig) SetID(id ItemID) { stamp(CategoryChatConfig, &c.Pos, id) }
func (c *ChatConfig) Label() string { return c.Name }

func (c *ChatConfig) Clone() Item {
	out := *c
	out.AccessModes = c.AccessModes.Clone()
	if c.Settings != nil {
		out.Settings = make([]ChatSetting, len(c.Settings))
		for i, s := range c.Settings {
			out.Settings[i] = s.Clone()
		}
	}
	return &out
}

// Tools returns the names of the tools enabled by the configuration.
func (c *ChatConfig) Tools() []string {
	var tools []string
	for _, s := range c.Settings {
		if s.Kind == SettingTool {
			tools = append(tools, s.Tool)
		}
	}
	return tools
}

// Setting returns the setting at index i.
func (c *ChatConfig) Setting(i int) (ChatSetting, bool) {
	if i < 0 || i >= len(c.Settings) {
		return ChatSetting{}, false
	}
	return c.Settings[i], true
}

// Upsert replaces the setting at i, or appends when i is out of range, and
// returns the index written.
func (c *ChatConfig) Upsert(i int, s ChatSetting) int {
	c.LastUpdated = time.Now()
	if i >= 0 && i < len(c.Settings) {
		c.Settings[i] = s
		return i
	}
	c.Settings = append(c.Settings, s)
	return len(c.Settings) - 1
}

// =============================================================================
// DEVICE, FILE, FOLDER
// =============================================================================

// Device is a client installation registered for the user.
type Device struct {
	Pos      int       `json:"pos"`
	Name     string    `json:"name"`
	Platform string    `json:"platform,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

func (d *Device) Category() Category { return CategoryDevice }
func (d *Device) ID() ItemID { return DeviceID(d.Pos) }
func (d *Device) SetID(id ItemID) { stamp(CategoryDevice, &d.Pos, id) }
func (d *Device) Label() string { return d.Name }

func (d *Device) Clone() Item {
	out := *d
	return &out
}

// File is an uploaded document.
type File struct {
	Pos         int       `json:"pos"`
	Name        string    `json:"name"`
	MIME        string    `json:"mime,omitempty"`
	Size        int64     `json:"size"`
	Folder      *int      `json:"folder,omitempty"`
	AccessModes Positions `json:"access_modes"`
}

func (f *File) Category() Category { return CategoryFile }
func (f *File) ID() ItemID { return FileID(f.Pos) }
func (f *File) SetID(id ItemID) { stamp(CategoryFile, &f.Pos, id) }
func (f *File) Label() string { return f.Name }

func (f *File) Clone() Item {
	out := *f
	out.Folder = cloneInt(f.Folder)
	out.AccessModes = f.AccessModes.Clone()
	return &out
}

// Folder groups files and other folders.
type Folder struct {
	Pos         int       `json:"pos"`
	Name        string    `json:"name"`
	Parent      *int      `json:"parent,omitempty"`
	AccessModes Positions `json:"access_modes"`
}

func (f *Folder) Category() Category { return CategoryFolder }
func (f *Folder) ID() ItemID { return FolderID(f.Pos) }
func (f *Folder) SetID(id ItemID) { stamp(CategoryFolder, &f.Pos, id) }
func (f *Folder) Label() string { return f.Name }

func (f *Folder) Clone() Item {
	out := *f
	out.Parent = cloneInt(f.Parent)
	out.AccessModes = f.AccessModes.Clone()
	return &out
}

// =============================================================================
// NOTIFICATION
// =============================================================================

// Notification informs the user about a change to an item.
type Notification struct {
	Pos         int       `json:"pos"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
	Related     *ItemID   `json:"related,omitempty"`
	AccessModes Positions `json:"access_modes"`
}

func (n *Notification) Category() Category { return CategoryNotification }
func (n *Notification) ID() ItemID { return NotificationID(n.Pos) }
func (n *Notification) SetID(id ItemID) { stamp(CategoryNotification, &n.Pos, id) }
func (n *Notification) Label() string { return n.Message }

func (n *Notification) Clone() Item {
	out := *n
	if n.Related != nil {
		r := *n.Related
		out.Related = &r
	}
	out.AccessModes = n.AccessModes.Clone()
	return &out
}

// =============================================================================
// USER DATA
// =============================================================================

// UserData is the per-user singleton.
type UserData struct {
	Pseudonym   string `json:"pseudonym"`
	DisplayName string `json:"display_name,omitempty"`
}

func (u *UserData) Category() Category { return CategoryUserData }
func (u *UserData) ID() ItemID { return UserDataID() }

func (u *UserData) SetID(id ItemID) {
	if id.Category != CategoryUserData {
		panic(fmt.Sprintf("Wrong kind of id: %s for a %s", id, CategoryUserData))
	}
}

func (u *UserData) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Pseudonym
}

func (u *UserData) Clone() Item {
	out := *u
	return &out
}
