package editor

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"portaal/core"
	"portaal/events"
)

// MinObjectSize is the smallest width/height a transform may leave behind.
const MinObjectSize = 5

// PendingImage is a decoded file-input buffer waiting to be placed on the
// canvas. Width and Height are the image's natural pixel dimensions.
type PendingImage struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

// Uploader is the image pipeline collaborator: it stores a pending image and
// releases stored assets when their element is deleted.
type Uploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (url, key string, err error)
	Delete(ctx context.Context, key string) error
}

// DocumentMeta is the metadata the persistence collaborator returns next to
// the document itself.
type DocumentMeta struct {
	Name            string
	Editable        bool
	IsTemplateOwner bool
}

// PointerTarget is the rendering collaborator's hit-test result under the
// pointer. Both fields empty means bare canvas. For element hits FrameID is
// the owning frame; for frame hits FrameID is the frame itself and ObjectID
// is empty.
type PointerTarget struct {
	ObjectID string
	FrameID  string
}

// PointerEvent is a pointer gesture sample in canvas coordinates.
type PointerEvent struct {
	X, Y   float64
	Button int // 0 = primary
	Target PointerTarget
}

// TransformEvent reports the rendering node's state at the end of a resize
// gesture: its position, stored size and the transient scale factors the
// transform handles applied. The collaborator resets its scale factors to 1
// after this event is handled, so the committed integer size stays the
// single source of truth.
type TransformEvent struct {
	Kind           core.ObjectKind
	FrameID, ID    string
	X, Y           float64
	Width, Height  float64
	ScaleX, ScaleY float64
}

// DragEvent reports the rendering node's transient offset at the end of a
// drag. The collaborator resets the offset to zero afterwards so position is
// not double-counted on the next drag.
type DragEvent struct {
	Kind             core.ObjectKind
	FrameID, ID      string
	OffsetX, OffsetY float64
}

// WheelEvent is a wheel sample over the stage. ModifierHeld mirrors the zoom
// modifier key; without it the event is not a zoom and the caller suppresses
// default scrolling itself.
type WheelEvent struct {
	X, Y         float64
	DeltaY       float64
	ModifierHeld bool
	PanX, PanY   float64
}

// Viewport is the stage transform resulting from a zoom gesture.
type Viewport struct {
	Scale      float64
	PanX, PanY float64
}

// KeyEvent is a keyboard sample. InTextInput is true while focus sits in a
// text field, which disables all shortcuts.
type KeyEvent struct {
	Key         string
	InTextInput bool
}

// Controller translates pointer and keyboard events into frame store, link
// registry and session mutations. All state containers are injected; cross-
// store ordering (selection after mutation, link cleanup around role
// changes) lives here, not hidden inside the stores.
//
// All methods must be called from a single goroutine, matching the UI event
// loop the editor runs on.
type Controller struct {
	frames   *FrameStore
	links    *LinkRegistry
	session  *Session
	uploader Uploader

	cancelPending func()
	pending       *PendingImage

	drawing          *SelectionRef
	anchorX, anchorY float64
	dragged          bool
}

// NewController wires a controller to its stores. pendingImages may be nil
// when no file-input bridge exists (tests, headless use); uploader may be
// nil when the image pipeline is absent.
func NewController(frames *FrameStore, links *LinkRegistry, session *Session, uploader Uploader, pendingImages *events.Topic[PendingImage]) *Controller {
	c := &Controller{
		frames:   frames,
		links:    links,
		session:  session,
		uploader: uploader,
	}
	if pendingImages != nil {
		c.cancelPending = pendingImages.Subscribe(func(p PendingImage) {
			c.pending = &p
		})
	}
	return c
}

// Close detaches the controller from the file-input bridge. Called when the
// editor session is torn down.
func (c *Controller) Close() {
	if c.cancelPending != nil {
		c.cancelPending()
		c.cancelPending = nil
	}
}

// LoadDocument installs a loaded document and session metadata. The order is
// fixed: frames, links, selection, user mode, editability, ownership.
func (c *Controller) LoadDocument(doc core.EditorDocument, meta DocumentMeta) {
	c.frames.SetFrames(doc.Frames)
	c.links.SetLinks(doc.Links)
	c.session.ClearSelection()
	if meta.IsTemplateOwner {
		c.session.SetUserMode(ModeDesigner)
	} else {
		c.session.SetUserMode(ModeNormal)
	}
	c.session.SetEditable(meta.Editable)
	c.session.SetTemplateOwner(meta.IsTemplateOwner)
}

// Document assembles the full current document for a wholesale save.
func (c *Controller) Document() core.EditorDocument {
	return core.EditorDocument{
		Frames: c.frames.Frames(),
		Links:  c.links.Links(),
	}
}

// SelectObject records a hit-tested object as the selection.
func (c *Controller) SelectObject(ref SelectionRef) {
	c.session.Select(ref)
}

// UpdateFrame pushes a frame change through the store and, when
// triggerSelect is set, makes the frame the current selection.
func (c *Controller) UpdateFrame(frame core.Frame, triggerSelect bool) {
	if !c.frames.UpdateFrame(frame) {
		return
	}
	if triggerSelect {
		c.session.Select(SelectionRef{Kind: core.KindFrame, ID: frame.ID})
	}
}

// UpdateElement pushes an element change through the store and, when
// triggerSelect is set, makes the element the current selection.
func (c *Controller) UpdateElement(frameID string, element core.FrameElement, triggerSelect bool) {
	if !c.frames.UpdateElement(frameID, element) {
		return
	}
	if triggerSelect {
		c.session.Select(SelectionRef{Kind: element.Kind, ID: element.ID, FrameID: frameID})
	}
}

// PointerDown starts a gesture. With a drawing tool it creates the new
// object at zero size; with the move tool over bare canvas it applies the
// two-step deselection policy. A non-primary button forces a temporary hand
// toggle, like holding space.
func (c *Controller) PointerDown(ev PointerEvent) {
	if ev.Button != 0 {
		if c.drawing == nil {
			c.session.SetTool(ToolState{Type: ToolHand, Method: MethodToggle})
		}
		return
	}

	switch c.session.Tool().Type {
	case ToolMove:
		c.pointerDownMove(ev)
	case ToolFrame:
		c.beginFrame(ev)
	case ToolRectangle, ToolText:
		c.beginElement(c.session.Tool().Type, ev)
	case ToolImage:
		c.beginImage(ev)
	}
}

func (c *Controller) pointerDownMove(ev PointerEvent) {
	if ev.Target.ObjectID != "" || ev.Target.FrameID != "" {
		return
	}
	// First empty-canvas click while a non-empty text is mid-edit only
	// exits edit mode; the next click deselects.
	if sel, ok := c.session.Selection(); ok && sel.Kind == core.KindText {
		if el, found := c.frames.GetElement(sel.FrameID, sel.ID); found && el.BeingEdited && el.TextValue != "" {
			c.frames.ToggleTextEditing(sel.FrameID, sel.ID, false)
			return
		}
	}
	c.session.ClearSelection()
}

func (c *Controller) beginFrame(ev PointerEvent) {
	if !c.session.Editable() {
		return
	}
	frame := core.Frame{
		Object: core.Object{
			ID:      uuid.NewString(),
			Kind:    core.KindFrame,
			Name:    c.nextName(core.KindFrame),
			X:       roundi(ev.X),
			Y:       roundi(ev.Y),
			Fill:    core.Fill{R: 255, G: 255, B: 255},
			Opacity: 100,
		},
		Elements: []core.FrameElement{},
	}
	c.frames.AddFrame(frame)
	c.session.ClearSelection()
	c.startDrawing(SelectionRef{Kind: core.KindFrame, ID: frame.ID}, ev)
}

func (c *Controller) beginElement(tool Tool, ev PointerEvent) {
	if !c.session.Editable() {
		return
	}
	frame, ok := c.frames.GetFrame(ev.Target.FrameID)
	if !ok {
		return
	}

	el := core.FrameElement{
		Object: core.Object{
			ID:      uuid.NewString(),
			X:       roundi(ev.X) - frame.X,
			Y:       roundi(ev.Y) - frame.Y,
			Opacity: 100,
		},
		FrameID: frame.ID,
	}
	switch tool {
	case ToolRectangle:
		el.Kind = core.KindRectangle
		el.Fill = core.Fill{R: 217, G: 217, B: 217}
	case ToolText:
		el.Kind = core.KindText
		el.Fill = core.Fill{}
	}
	el.Name = c.nextName(el.Kind)

	c.frames.AddElement(frame.ID, el)
	c.startDrawing(SelectionRef{Kind: el.Kind, ID: el.ID, FrameID: frame.ID}, ev)
}

func (c *Controller) beginImage(ev PointerEvent) {
	if !c.session.Editable() {
		return
	}
	frame, ok := c.frames.GetFrame(ev.Target.FrameID)
	if !ok {
		// No frame under the pointer: the gesture aborts and the pending
		// buffer is released.
		c.pending = nil
		return
	}
	if c.pending == nil {
		return
	}

	el := core.FrameElement{
		Object: core.Object{
			ID:      uuid.NewString(),
			Kind:    core.KindImage,
			Name:    c.nextName(core.KindImage),
			X:       roundi(ev.X) - frame.X,
			Y:       roundi(ev.Y) - frame.Y,
			Opacity: 100,
		},
		FrameID:     frame.ID,
		ImageWidth:  c.pending.Width,
		ImageHeight: c.pending.Height,
	}
	c.frames.AddElement(frame.ID, el)
	c.startDrawing(SelectionRef{Kind: core.KindImage, ID: el.ID, FrameID: frame.ID}, ev)
}

func (c *Controller) startDrawing(ref SelectionRef, ev PointerEvent) {
	r := ref
	c.drawing = &r
	c.anchorX, c.anchorY = ev.X, ev.Y
	c.dragged = false
}

// PointerMove resizes the object being drawn with rubber-band semantics:
// top-left at the per-axis minimum of anchor and pointer, size the absolute
// delta. Images keep their natural aspect ratio instead, flipping the
// vertical anchor when dragging upward. Each move fully recomputes from the
// fixed anchor, so coalescing moves never changes the result.
func (c *Controller) PointerMove(ev PointerEvent) {
	if c.drawing == nil {
		return
	}
	d := *c.drawing

	if d.Kind == core.KindFrame {
		f, ok := c.frames.GetFrame(d.ID)
		if !ok {
			c.drawing = nil
			return
		}
		f.X = roundi(math.Min(c.anchorX, ev.X))
		f.Y = roundi(math.Min(c.anchorY, ev.Y))
		f.Width = roundi(math.Abs(ev.X - c.anchorX))
		f.Height = roundi(math.Abs(ev.Y - c.anchorY))
		f.BeingDrawn = true
		c.frames.UpdateFrame(f)
		c.dragged = true
		return
	}

	frame, ok := c.frames.GetFrame(d.FrameID)
	if !ok {
		c.drawing = nil
		return
	}
	el, ok := c.frames.GetElement(d.FrameID, d.ID)
	if !ok {
		c.drawing = nil
		return
	}

	ax := c.anchorX - float64(frame.X)
	ay := c.anchorY - float64(frame.Y)
	cx := ev.X - float64(frame.X)
	cy := ev.Y - float64(frame.Y)

	if el.Kind == core.KindImage && el.ImageWidth > 0 && el.ImageHeight > 0 {
		aspect := float64(el.ImageWidth) / float64(el.ImageHeight)
		w := math.Abs(cx - ax)
		h := w / aspect
		el.X = roundi(math.Min(ax, cx))
		if cy < ay {
			el.Y = roundi(ay - h)
		} else {
			el.Y = roundi(ay)
		}
		el.Width = roundi(w)
		el.Height = roundi(h)
	} else {
		el.X = roundi(math.Min(ax, cx))
		el.Y = roundi(math.Min(ay, cy))
		el.Width = roundi(math.Abs(cx - ax))
		el.Height = roundi(math.Abs(cy - ay))
	}
	el.BeingDrawn = true
	c.frames.UpdateElement(d.FrameID, el)
	c.dragged = true
}

// PointerUp finalizes the gesture. A plain click (no drag) gets the tool's
// default dimensions; a dragged shape just has its drawing flag cleared. A
// finished image element queues the pending buffer for upload. The new
// object becomes the selection.
func (c *Controller) PointerUp(ctx context.Context, ev PointerEvent) {
	if ev.Button != 0 {
		if tool := c.session.Tool(); tool.Method == MethodToggle {
			c.session.SetTool(ToolState{Type: ToolMove, Method: MethodSelected})
		}
		return
	}
	if c.drawing == nil {
		return
	}
	d := *c.drawing
	c.drawing = nil

	if d.Kind == core.KindFrame {
		f, ok := c.frames.GetFrame(d.ID)
		if !ok {
			return
		}
		if !c.dragged || f.Width < 1 || f.Height < 1 {
			f.Width, f.Height = 100, 100
		}
		f.BeingDrawn = false
		c.frames.UpdateFrame(f)
		c.session.Select(d)
		return
	}

	el, ok := c.frames.GetElement(d.FrameID, d.ID)
	if !ok {
		return
	}
	if !c.dragged || el.Width < 1 || el.Height < 1 {
		switch el.Kind {
		case core.KindText:
			el.Width, el.Height = 100, 25
		case core.KindImage:
			el.Width, el.Height = el.ImageWidth, el.ImageHeight
		default:
			el.Width, el.Height = 100, 100
		}
	}
	el.BeingDrawn = false
	c.frames.UpdateElement(d.FrameID, el)

	if el.Kind == core.KindImage && c.pending != nil {
		pending := *c.pending
		c.pending = nil
		c.uploadImage(ctx, d, pending)
	}
	c.session.Select(d)
}

func (c *Controller) uploadImage(ctx context.Context, ref SelectionRef, pending PendingImage) {
	if c.uploader == nil {
		return
	}
	url, key, err := c.uploader.Upload(ctx, pending.Name, pending.ContentType, pending.Data)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"element_id": ref.ID,
			"frame_id":   ref.FrameID,
		}).WithError(err).Error("Failed to upload image")
		return
	}
	el, ok := c.frames.GetElement(ref.FrameID, ref.ID)
	if !ok {
		return
	}
	el.ImageURL = url
	el.ImageKey = key
	c.frames.UpdateElement(ref.FrameID, el)
}

// TransformEnd commits a resize: the node's transient scale factors are
// folded into integer width/height, floored at MinObjectSize so no
// degenerate shape survives a transform.
func (c *Controller) TransformEnd(ev TransformEvent) {
	w := roundi(ev.Width * ev.ScaleX)
	h := roundi(ev.Height * ev.ScaleY)
	if w < MinObjectSize {
		w = MinObjectSize
	}
	if h < MinObjectSize {
		h = MinObjectSize
	}

	if ev.Kind == core.KindFrame {
		f, ok := c.frames.GetFrame(ev.ID)
		if !ok {
			return
		}
		f.X, f.Y = roundi(ev.X), roundi(ev.Y)
		f.Width, f.Height = w, h
		c.UpdateFrame(f, true)
		return
	}

	el, ok := c.frames.GetElement(ev.FrameID, ev.ID)
	if !ok {
		return
	}
	el.X, el.Y = roundi(ev.X), roundi(ev.Y)
	el.Width, el.Height = w, h
	c.UpdateElement(ev.FrameID, el, true)
}

// DragEnd commits a move: the node's transient offset is added to the last
// committed position and rounded to integers.
func (c *Controller) DragEnd(ev DragEvent) {
	if ev.Kind == core.KindFrame {
		f, ok := c.frames.GetFrame(ev.ID)
		if !ok {
			return
		}
		f.X = roundi(float64(f.X) + ev.OffsetX)
		f.Y = roundi(float64(f.Y) + ev.OffsetY)
		c.UpdateFrame(f, true)
		return
	}

	el, ok := c.frames.GetElement(ev.FrameID, ev.ID)
	if !ok {
		return
	}
	el.X = roundi(float64(el.X) + ev.OffsetX)
	el.Y = roundi(float64(el.Y) + ev.OffsetY)
	c.UpdateElement(ev.FrameID, el, true)
}

// Wheel handles a zoom gesture. Without the modifier the event is ignored
// and the caller suppresses default scrolling. With it, scale steps by 1.1
// (rounded to two decimals on the way in), clamped, and the pan offset is
// recomputed so the point under the pointer stays fixed.
func (c *Controller) Wheel(ev WheelEvent) (Viewport, bool) {
	if !ev.ModifierHeld {
		return Viewport{}, false
	}

	old := c.session.StageScale()
	var scale float64
	if ev.DeltaY < 0 {
		scale = math.Round(old*1.1*100) / 100
	} else {
		scale = old / 1.1
	}
	scale = ClampStageScale(scale)
	c.session.SetStageScale(scale)

	return Viewport{
		Scale: scale,
		PanX:  ev.X - (ev.X-ev.PanX)/old*scale,
		PanY:  ev.Y - (ev.Y-ev.PanY)/old*scale,
	}, true
}

// KeyDown dispatches keyboard shortcuts. Space and V work in every mode;
// the structural tools and delete only in designer mode. Nothing fires
// while focus is inside a text input.
func (c *Controller) KeyDown(ctx context.Context, ev KeyEvent) {
	if ev.InTextInput {
		return
	}

	switch ev.Key {
	case " ":
		// Temporary hand toggle, unless a drawing tool is mid-gesture.
		if c.drawing != nil {
			return
		}
		c.session.SetTool(ToolState{Type: ToolHand, Method: MethodToggle})
		return
	case "v", "V":
		c.session.SetTool(ToolState{Type: ToolMove, Method: MethodSelected})
		return
	}

	if c.session.UserMode() != ModeDesigner {
		return
	}
	switch ev.Key {
	case "h", "H":
		c.session.SetTool(ToolState{Type: ToolHand, Method: MethodSelected})
	case "f", "F":
		c.session.SetTool(ToolState{Type: ToolFrame, Method: MethodSelected})
	case "r", "R":
		c.session.SetTool(ToolState{Type: ToolRectangle, Method: MethodSelected})
	case "t", "T":
		c.session.SetTool(ToolState{Type: ToolText, Method: MethodSelected})
	case "Delete":
		c.DeleteSelected(ctx)
	}
}

// KeyUp reverts a held space toggle back to the move tool.
func (c *Controller) KeyUp(ev KeyEvent) {
	if ev.Key != " " {
		return
	}
	if tool := c.session.Tool(); tool.Type == ToolHand && tool.Method == MethodToggle {
		c.session.SetTool(ToolState{Type: ToolMove, Method: MethodSelected})
	}
}

// DeleteSelected removes the current selection. Deleting a frame takes all
// its elements with it; deleting an image element releases its stored asset.
func (c *Controller) DeleteSelected(ctx context.Context) {
	sel, ok := c.session.Selection()
	if !ok {
		return
	}
	if sel.Kind == core.KindFrame {
		c.DeleteFrame(sel.ID)
		return
	}
	if sel.FrameID == "" {
		return
	}
	c.DeleteElement(ctx, sel.FrameID, sel.ID)
}

// DeleteFrame removes a frame. Selection is always cleared afterwards, even
// when a different object was selected.
func (c *Controller) DeleteFrame(id string) {
	if _, ok := c.frames.DeleteFrame(id); !ok {
		return
	}
	c.session.ClearSelection()
}

// DeleteElement removes one element, releasing its image asset first when
// it has one.
func (c *Controller) DeleteElement(ctx context.Context, frameID, id string) {
	el, ok := c.frames.DeleteElement(frameID, id)
	if !ok {
		return
	}
	if el.Kind == core.KindImage && el.ImageKey != "" && c.uploader != nil {
		if err := c.uploader.Delete(ctx, el.ImageKey); err != nil {
			logrus.WithField("image_key", el.ImageKey).WithError(err).Warn("Failed to delete image asset")
		}
	}
	if sel, selected := c.session.Selection(); selected && sel.ID == id {
		c.session.ClearSelection()
	}
}

// MoveSelectedToTop raises the selected object to the front of its owning
// array. No selection change.
func (c *Controller) MoveSelectedToTop() {
	sel, ok := c.session.Selection()
	if !ok {
		return
	}
	if sel.Kind == core.KindFrame {
		c.frames.MoveFrameToTop(sel.ID)
		return
	}
	c.frames.MoveElementToTop(sel.FrameID, sel.ID)
}

// MoveSelectedToBottom lowers the selected object to the back of its owning
// array. No selection change.
func (c *Controller) MoveSelectedToBottom() {
	sel, ok := c.session.Selection()
	if !ok {
		return
	}
	if sel.Kind == core.KindFrame {
		c.frames.MoveFrameToBottom(sel.ID)
		return
	}
	c.frames.MoveElementToBottom(sel.FrameID, sel.ID)
}

// CreateLink links two text elements, parent to child, and keeps their
// roles consistent. Fails when the child is already linked elsewhere.
func (c *Controller) CreateLink(link core.Link) error {
	return c.links.AddLink(link)
}

// RemoveLink unlinks one parent/child pair.
func (c *Controller) RemoveLink(link core.Link) {
	c.links.RemoveLink(link)
}

func (c *Controller) nextName(kind core.ObjectKind) string {
	count := 0
	for _, f := range c.frames.Frames() {
		if kind == core.KindFrame {
			count++
			continue
		}
		for _, el := range f.Elements {
			if el.Kind == kind {
				count++
			}
		}
	}

	var base string
	switch kind {
	case core.KindFrame:
		base = "Frame"
	case core.KindRectangle:
		base = "Rectangle"
	case core.KindText:
		base = "Text"
	case core.KindImage:
		base = "Image"
	}
	return fmt.Sprintf("%s %d", base, count+1)
}

func roundi(v float64) int {
	return int(math.Round(v))
}
