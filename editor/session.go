package editor

import "portaal/core"

// Tool identifies the active canvas tool.
type Tool string

const (
	ToolMove      Tool = "move"
	ToolHand      Tool = "hand"
	ToolFrame     Tool = "frame"
	ToolRectangle Tool = "rectangle"
	ToolText      Tool = "text"
	ToolImage     Tool = "image"
)

// ToolMethod says how the tool was activated. A selected tool persists; a
// toggled tool is active only while its modifier (spacebar, non-primary
// mouse button) is held and reverts to move on release.
type ToolMethod string

const (
	MethodSelected ToolMethod = "selected"
	MethodToggle   ToolMethod = "toggle"
)

// ToolState is the active tool plus its activation method.
type ToolState struct {
	Type   Tool       `json:"type"`
	Method ToolMethod `json:"method"`
}

// UserMode is the editing mode: designers edit structure, normal users only
// fill linked placeholders.
type UserMode string

const (
	ModeNormal   UserMode = "normal"
	ModeDesigner UserMode = "designer"
)

// Stage scale bounds. Zoom gestures clamp into this range.
const (
	MinStageScale = 0.10
	MaxStageScale = 9.99
)

// SelectionRef identifies the selected object without snapshotting it.
// Consumers resolve the live object from the frame store by id, so the
// selection can never go stale after a store mutation. FrameID is empty for
// frames.
type SelectionRef struct {
	Kind    core.ObjectKind `json:"kind"`
	ID      string          `json:"id"`
	FrameID string          `json:"frameId,omitempty"`
}

// Session is the transient per-editor UI state. It holds no document data
// and depends on no other store.
type Session struct {
	selection       *SelectionRef
	tool            ToolState
	stageScale      float64
	userMode        UserMode
	isEditable      bool
	isTemplateOwner bool
}

// NewSession creates a session with the move tool active at 100% zoom.
func NewSession() *Session {
	return &Session{
		tool:       ToolState{Type: ToolMove, Method: MethodSelected},
		stageScale: 1.0,
		userMode:   ModeNormal,
	}
}

// Select records the given object as the current selection.
func (s *Session) Select(ref SelectionRef) {
	r := ref
	s.selection = &r
}

// ClearSelection drops the current selection.
func (s *Session) ClearSelection() {
	s.selection = nil
}

// Selection returns the current selection ref, if any.
func (s *Session) Selection() (SelectionRef, bool) {
	if s.selection == nil {
		return SelectionRef{}, false
	}
	return *s.selection, true
}

// SetTool activates a tool.
func (s *Session) SetTool(tool ToolState) {
	s.tool = tool
}

// Tool returns the active tool state.
func (s *Session) Tool() ToolState {
	return s.tool
}

// SetStageScale sets the zoom factor, clamped into the allowed range.
func (s *Session) SetStageScale(scale float64) {
	s.stageScale = ClampStageScale(scale)
}

// StageScale returns the current zoom factor.
func (s *Session) StageScale() float64 {
	return s.stageScale
}

// ClampStageScale bounds a zoom factor into [MinStageScale, MaxStageScale].
func ClampStageScale(scale float64) float64 {
	if scale < MinStageScale {
		return MinStageScale
	}
	if scale > MaxStageScale {
		return MaxStageScale
	}
	return scale
}

func (s *Session) SetUserMode(mode UserMode) { s.userMode = mode }
func (s *Session) UserMode() UserMode        { return s.userMode }

func (s *Session) SetEditable(editable bool) { s.isEditable = editable }
func (s *Session) Editable() bool            { return s.isEditable }

func (s *Session) SetTemplateOwner(owner bool) { s.isTemplateOwner = owner }
func (s *Session) TemplateOwner() bool         { return s.isTemplateOwner }
