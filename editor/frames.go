package editor

import (
	"portaal/core"
)

// ExportableFrame is the projection the export dialog renders.
type ExportableFrame struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Selected bool   `json:"selected"`
}

// FillUpdate merges new fill fields into a frame (FrameID empty) or an
// element (FrameID set). Nil fields are left unchanged.
type FillUpdate struct {
	FrameID string
	ID      string
	Color   *core.Fill
	Opacity *int
}

// FrameStore owns the ordered frame collection and, nested in each frame,
// its elements. Array order is paint order: last is topmost. All structural
// mutation funnels through here. The link registry is injected so text edits
// can fan out across links; selection is deliberately not a concern of this
// store — the controller composes selection changes around these calls.
type FrameStore struct {
	frames []core.Frame
	links  *LinkRegistry
}

// NewFrameStore creates an empty store wired to a link registry.
func NewFrameStore(links *LinkRegistry) *FrameStore {
	return &FrameStore{frames: []core.Frame{}, links: links}
}

// SetFrames bulk-replaces all frames. Used on document load.
func (s *FrameStore) SetFrames(frames []core.Frame) {
	s.frames = make([]core.Frame, len(frames))
	copy(s.frames, frames)
}

// Frames returns the frames in paint order.
func (s *FrameStore) Frames() []core.Frame {
	out := make([]core.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// GetFrame looks up a frame by id.
func (s *FrameStore) GetFrame(id string) (core.Frame, bool) {
	for _, f := range s.frames {
		if f.ID == id {
			return f, true
		}
	}
	return core.Frame{}, false
}

// GetElement looks up an element inside a frame.
func (s *FrameStore) GetElement(frameID, id string) (core.FrameElement, bool) {
	f, ok := s.GetFrame(frameID)
	if !ok {
		return core.FrameElement{}, false
	}
	for _, el := range f.Elements {
		if el.ID == id {
			return el, true
		}
	}
	return core.FrameElement{}, false
}

// AddFrame appends a frame at the top of the paint order.
func (s *FrameStore) AddFrame(frame core.Frame) {
	if frame.Elements == nil {
		frame.Elements = []core.FrameElement{}
	}
	s.frames = append(s.frames, frame)
}

// AddElement appends an element to its frame, topmost. No-op if the frame
// does not exist.
func (s *FrameStore) AddElement(frameID string, element core.FrameElement) bool {
	i, ok := s.frameIndex(frameID)
	if !ok {
		return false
	}
	element.FrameID = frameID
	s.frames[i].Elements = append(s.frames[i].Elements, element)
	return true
}

// UpdateFrame replaces the frame with the matching id, keeping its position
// in the paint order and its element list. Reports whether the frame existed.
func (s *FrameStore) UpdateFrame(frame core.Frame) bool {
	i, ok := s.frameIndex(frame.ID)
	if !ok {
		return false
	}
	if frame.Elements == nil {
		frame.Elements = s.frames[i].Elements
	}
	s.frames[i] = frame
	return true
}

// UpdateElement replaces the element with the matching id inside one frame.
func (s *FrameStore) UpdateElement(frameID string, element core.FrameElement) bool {
	i, ok := s.frameIndex(frameID)
	if !ok {
		return false
	}
	for j, el := range s.frames[i].Elements {
		if el.ID == element.ID {
			element.FrameID = frameID
			s.frames[i].Elements[j] = element
			return true
		}
	}
	return false
}

// DeleteFrame removes a frame and, implicitly, all its elements. Dangling
// links are cleaned up for every removed element.
func (s *FrameStore) DeleteFrame(id string) (core.Frame, bool) {
	i, ok := s.frameIndex(id)
	if !ok {
		return core.Frame{}, false
	}
	removed := s.frames[i]
	for _, el := range removed.Elements {
		s.links.RemoveRelatedLinks(el.ID)
	}
	s.frames = append(s.frames[:i], s.frames[i+1:]...)
	return removed, true
}

// DeleteElement removes one element from its frame and cascades link
// removal. The removed element is returned so the caller can release
// external resources (uploaded image assets).
func (s *FrameStore) DeleteElement(frameID, id string) (core.FrameElement, bool) {
	i, ok := s.frameIndex(frameID)
	if !ok {
		return core.FrameElement{}, false
	}
	for j, el := range s.frames[i].Elements {
		if el.ID == id {
			s.links.RemoveRelatedLinks(id)
			s.frames[i].Elements = append(s.frames[i].Elements[:j], s.frames[i].Elements[j+1:]...)
			return el, true
		}
	}
	return core.FrameElement{}, false
}

// MoveFrameToTop reorders a frame to the end of the array (topmost).
func (s *FrameStore) MoveFrameToTop(id string) {
	i, ok := s.frameIndex(id)
	if !ok {
		return
	}
	f := s.frames[i]
	s.frames = append(s.frames[:i], s.frames[i+1:]...)
	s.frames = append(s.frames, f)
}

// MoveFrameToBottom reorders a frame to the start of the array (bottommost).
func (s *FrameStore) MoveFrameToBottom(id string) {
	i, ok := s.frameIndex(id)
	if !ok {
		return
	}
	f := s.frames[i]
	s.frames = append(s.frames[:i], s.frames[i+1:]...)
	s.frames = append([]core.Frame{f}, s.frames...)
}

// MoveElementToTop reorders an element to the end of its frame's array.
func (s *FrameStore) MoveElementToTop(frameID, id string) {
	i, ok := s.frameIndex(frameID)
	if !ok {
		return
	}
	for j, el := range s.frames[i].Elements {
		if el.ID == id {
			s.frames[i].Elements = append(s.frames[i].Elements[:j], s.frames[i].Elements[j+1:]...)
			s.frames[i].Elements = append(s.frames[i].Elements, el)
			return
		}
	}
}

// MoveElementToBottom reorders an element to the start of its frame's array.
func (s *FrameStore) MoveElementToBottom(frameID, id string) {
	i, ok := s.frameIndex(frameID)
	if !ok {
		return
	}
	for j, el := range s.frames[i].Elements {
		if el.ID == id {
			rest := append(s.frames[i].Elements[:j], s.frames[i].Elements[j+1:]...)
			s.frames[i].Elements = append([]core.FrameElement{el}, rest...)
			return
		}
	}
}

// SetFrameElements bulk-replaces one frame's element array. Used by the
// elements panel's manual drag-reorder, which moves an element to an
// arbitrary position rather than just top or bottom.
func (s *FrameStore) SetFrameElements(frameID string, elements []core.FrameElement) {
	i, ok := s.frameIndex(frameID)
	if !ok {
		return
	}
	els := make([]core.FrameElement, len(elements))
	copy(els, elements)
	for j := range els {
		els[j].FrameID = frameID
	}
	s.frames[i].Elements = els
}

// UpdateTextValue sets a text element's value and fans the edit out across
// its links: a parent pushes to every child; a child pushes to its parent
// and all siblings; an unlinked element propagates nowhere. The fanned-out
// writes do not propagate further.
func (s *FrameStore) UpdateTextValue(frameID, id, text string) {
	el, ok := s.GetElement(frameID, id)
	if !ok || el.Kind != core.KindText {
		return
	}
	s.setTextValue(core.ElementRef{ID: id, FrameID: frameID}, text)

	switch el.LinkRole {
	case core.RoleParent:
		for _, child := range s.links.ChildrenOf(id) {
			s.setTextValue(child, text)
		}
	case core.RoleChild:
		if parent, ok := s.links.ParentOf(id); ok {
			s.setTextValue(parent, text)
		}
		for _, sibling := range s.links.Siblings(id) {
			s.setTextValue(sibling, text)
		}
	}
}

// setTextValue overwrites one text element's value without propagation.
func (s *FrameStore) setTextValue(ref core.ElementRef, text string) {
	i, ok := s.frameIndex(ref.FrameID)
	if !ok {
		return
	}
	for j, el := range s.frames[i].Elements {
		if el.ID == ref.ID && el.Kind == core.KindText {
			s.frames[i].Elements[j].TextValue = text
			return
		}
	}
}

// ToggleTextEditing sets a text element's editing flag. The flag gates the
// click-to-deselect policy in the controller.
func (s *FrameStore) ToggleTextEditing(frameID, id string, editing bool) {
	i, ok := s.frameIndex(frameID)
	if !ok {
		return
	}
	for j, el := range s.frames[i].Elements {
		if el.ID == id && el.Kind == core.KindText {
			s.frames[i].Elements[j].BeingEdited = editing
			return
		}
	}
}

// SetLinkRole sets or clears a text element's link role and cascades link
// removal so a cleared role never leaves dangling links behind.
func (s *FrameStore) SetLinkRole(frameID, id string, role core.LinkRole) {
	i, ok := s.frameIndex(frameID)
	if !ok {
		return
	}
	for j, el := range s.frames[i].Elements {
		if el.ID == id && el.Kind == core.KindText {
			if s.frames[i].Elements[j].LinkRole != role {
				s.links.RemoveRelatedLinks(id)
			}
			s.frames[i].Elements[j].LinkRole = role
			return
		}
	}
}

// GetRoleElements returns every text element across all frames with the
// given link role. With a filterID, candidates already linked relative to
// that element are excluded: for RoleParent, the element currently linked as
// filterID's parent; for RoleChild, elements already children of parent
// filterID. This feeds the "pick a link target" panel with only eligible
// candidates.
func (s *FrameStore) GetRoleElements(role core.LinkRole, filterID string) []core.FrameElement {
	var out []core.FrameElement
	for _, f := range s.frames {
		for _, el := range f.Elements {
			if el.Kind != core.KindText || el.LinkRole != role {
				continue
			}
			if filterID != "" && s.excludedForFilter(role, filterID, el.ID) {
				continue
			}
			out = append(out, el)
		}
	}
	return out
}

func (s *FrameStore) excludedForFilter(role core.LinkRole, filterID, candidateID string) bool {
	switch role {
	case core.RoleParent:
		if parent, ok := s.links.ParentOf(filterID); ok && parent.ID == candidateID {
			return true
		}
	case core.RoleChild:
		for _, child := range s.links.ChildrenOf(filterID) {
			if child.ID == candidateID {
				return true
			}
		}
	}
	return false
}

// SetFillColor merges fill color and/or opacity into a frame or element.
func (s *FrameStore) SetFillColor(update FillUpdate) {
	apply := func(o *core.Object) {
		if update.Color != nil {
			o.Fill = *update.Color
		}
		if update.Opacity != nil {
			o.Opacity = *update.Opacity
		}
	}

	if update.FrameID == "" {
		if i, ok := s.frameIndex(update.ID); ok {
			apply(&s.frames[i].Object)
		}
		return
	}
	i, ok := s.frameIndex(update.FrameID)
	if !ok {
		return
	}
	for j := range s.frames[i].Elements {
		if s.frames[i].Elements[j].ID == update.ID {
			apply(&s.frames[i].Elements[j].Object)
			return
		}
	}
}

// GetExportableFrames projects every frame for the export dialog.
func (s *FrameStore) GetExportableFrames() []ExportableFrame {
	out := make([]ExportableFrame, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, ExportableFrame{
			ID:       f.ID,
			Name:     f.Name,
			Width:    f.Width,
			Height:   f.Height,
			Selected: f.SelectedForExport,
		})
	}
	return out
}

// ToggleExport flips one frame's export flag.
func (s *FrameStore) ToggleExport(id string) {
	if i, ok := s.frameIndex(id); ok {
		s.frames[i].SelectedForExport = !s.frames[i].SelectedForExport
	}
}

func (s *FrameStore) frameIndex(id string) (int, bool) {
	for i, f := range s.frames {
		if f.ID == id {
			return i, true
		}
	}
	return 0, false
}
