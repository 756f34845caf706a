package editor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"portaal/core"
	"portaal/events"
)

type mockUploader struct {
	mu       sync.Mutex
	uploads  []string
	deleted  []string
	failNext bool
}

func (m *mockUploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		return "", "", fmt.Errorf("upload failed")
	}
	key := fmt.Sprintf("key-%d", len(m.uploads))
	m.uploads = append(m.uploads, name)
	return "/api/uploads/" + key, key, nil
}

func (m *mockUploader) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

type testEditor struct {
	controller *Controller
	frames     *FrameStore
	links      *LinkRegistry
	session    *Session
	uploader   *mockUploader
	pending    *events.Topic[PendingImage]
}

func newTestEditor(t *testing.T, designer bool) *testEditor {
	t.Helper()
	links := NewLinkRegistry()
	frames := NewFrameStore(links)
	session := NewSession()
	uploader := &mockUploader{}
	pending := events.NewTopic[PendingImage]()
	c := NewController(frames, links, session, uploader, pending)
	t.Cleanup(c.Close)

	c.LoadDocument(core.EditorDocument{}, DocumentMeta{
		Editable:        designer,
		IsTemplateOwner: designer,
	})
	return &testEditor{
		controller: c,
		frames:     frames,
		links:      links,
		session:    session,
		uploader:   uploader,
		pending:    pending,
	}
}

func (e *testEditor) drawFrame(t *testing.T, x0, y0, x1, y1 float64) core.Frame {
	t.Helper()
	e.session.SetTool(ToolState{Type: ToolFrame, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: x0, Y: y0})
	e.controller.PointerMove(PointerEvent{X: x1, Y: y1})
	e.controller.PointerUp(context.Background(), PointerEvent{X: x1, Y: y1})

	frames := e.frames.Frames()
	if len(frames) == 0 {
		t.Fatal("no frame created")
	}
	return frames[len(frames)-1]
}

func TestDrawFrame_RubberBand(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 100, 100, 250, 180)

	if f.X != 100 || f.Y != 100 || f.Width != 150 || f.Height != 80 {
		t.Errorf("frame bounds = (%d,%d %dx%d), want (100,100 150x80)", f.X, f.Y, f.Width, f.Height)
	}
	if f.BeingDrawn {
		t.Error("BeingDrawn should clear on pointer up")
	}
	sel, ok := e.session.Selection()
	if !ok || sel.ID != f.ID {
		t.Error("finished frame should be selected")
	}
}

func TestDrawFrame_UpLeftFlipsAnchor(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 200, 200, 120, 150)

	if f.X != 120 || f.Y != 150 || f.Width != 80 || f.Height != 50 {
		t.Errorf("frame bounds = (%d,%d %dx%d), want (120,150 80x50)", f.X, f.Y, f.Width, f.Height)
	}
}

func TestDrawFrame_MoveCoalescingIrrelevant(t *testing.T) {
	// Many intermediate moves and a single final move must land on the same
	// geometry, since each move recomputes from the fixed anchor.
	a := newTestEditor(t, true)
	a.session.SetTool(ToolState{Type: ToolFrame, Method: MethodSelected})
	a.controller.PointerDown(PointerEvent{X: 10, Y: 10})
	for x := 11.0; x <= 90; x += 7 {
		a.controller.PointerMove(PointerEvent{X: x, Y: x / 2})
	}
	a.controller.PointerMove(PointerEvent{X: 90, Y: 70})
	a.controller.PointerUp(context.Background(), PointerEvent{X: 90, Y: 70})

	b := newTestEditor(t, true)
	fb := b.drawFrame(t, 10, 10, 90, 70)

	fa := a.frames.Frames()[0]
	if fa.X != fb.X || fa.Y != fb.Y || fa.Width != fb.Width || fa.Height != fb.Height {
		t.Errorf("coalesced draw differs: (%d,%d %dx%d) vs (%d,%d %dx%d)",
			fa.X, fa.Y, fa.Width, fa.Height, fb.X, fb.Y, fb.Width, fb.Height)
	}
}

func TestClickDefaults(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 0, 0, 400, 300)

	// Plain click with a tool: default dimensions.
	e.session.SetTool(ToolState{Type: ToolText, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 50, Y: 50, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 50, Y: 50, Target: PointerTarget{FrameID: f.ID}})

	texts := e.frames.GetRoleElements(core.RoleNone, "")
	if len(texts) != 1 {
		t.Fatalf("expected 1 text element, got %d", len(texts))
	}
	if texts[0].Width != 100 || texts[0].Height != 25 {
		t.Errorf("text default size = %dx%d, want 100x25", texts[0].Width, texts[0].Height)
	}

	e.session.SetTool(ToolState{Type: ToolRectangle, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 60, Y: 60, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 60, Y: 60, Target: PointerTarget{FrameID: f.ID}})

	frame, _ := e.frames.GetFrame(f.ID)
	var rect core.FrameElement
	for _, el := range frame.Elements {
		if el.Kind == core.KindRectangle {
			rect = el
		}
	}
	if rect.Width != 100 || rect.Height != 100 {
		t.Errorf("rectangle default size = %dx%d, want 100x100", rect.Width, rect.Height)
	}
}

func TestClickDefaults_Frame(t *testing.T) {
	e := newTestEditor(t, true)
	e.session.SetTool(ToolState{Type: ToolFrame, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 10, Y: 10})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 10, Y: 10})

	f := e.frames.Frames()[0]
	if f.Width != 100 || f.Height != 100 {
		t.Errorf("frame default size = %dx%d, want 100x100", f.Width, f.Height)
	}
}

func TestElementGeometry_RelativeToFrame(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 100, 100, 300, 300)

	e.session.SetTool(ToolState{Type: ToolRectangle, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 150, Y: 170, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerMove(PointerEvent{X: 200, Y: 220, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 200, Y: 220, Target: PointerTarget{FrameID: f.ID}})

	frame, _ := e.frames.GetFrame(f.ID)
	el := frame.Elements[len(frame.Elements)-1]
	if el.X != 50 || el.Y != 70 {
		t.Errorf("element origin = (%d,%d), want frame-relative (50,70)", el.X, el.Y)
	}
	if el.Width != 50 || el.Height != 50 {
		t.Errorf("element size = %dx%d, want 50x50", el.Width, el.Height)
	}
}

func TestImageDraw_KeepsAspectRatio(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 0, 0, 500, 500)

	e.pending.Publish(PendingImage{
		Name: "photo.png", ContentType: "image/png",
		Data: []byte{1, 2, 3}, Width: 200, Height: 100,
	})
	e.session.SetTool(ToolState{Type: ToolImage, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 10, Y: 10, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerMove(PointerEvent{X: 110, Y: 20, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 110, Y: 20, Target: PointerTarget{FrameID: f.ID}})

	frame, _ := e.frames.GetFrame(f.ID)
	img := frame.Elements[len(frame.Elements)-1]
	if img.Kind != core.KindImage {
		t.Fatalf("expected image element, got %v", img.Kind)
	}
	// Horizontal delta 100 at aspect 2:1 gives 100x50 regardless of the
	// small vertical delta.
	if img.Width != 100 || img.Height != 50 {
		t.Errorf("image size = %dx%d, want 100x50", img.Width, img.Height)
	}
	if len(e.uploader.uploads) != 1 {
		t.Errorf("expected 1 upload, got %d", len(e.uploader.uploads))
	}
	if img.ImageKey == "" || img.ImageURL == "" {
		t.Error("upload result should be written back to the element")
	}
}

func TestImageDraw_UpwardFlipsVerticalAnchor(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 0, 0, 500, 500)

	e.pending.Publish(PendingImage{Width: 100, Height: 100, Data: []byte{1}})
	e.session.SetTool(ToolState{Type: ToolImage, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 100, Y: 200, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerMove(PointerEvent{X: 150, Y: 100, Target: PointerTarget{FrameID: f.ID}})

	frame, _ := e.frames.GetFrame(f.ID)
	img := frame.Elements[len(frame.Elements)-1]
	// Square aspect, horizontal delta 50: image is 50x50 and, dragging
	// upward, its top sits 50 above the anchor.
	if img.Y != 150 {
		t.Errorf("image Y = %d, want 150 (anchor 200 minus height 50)", img.Y)
	}
	if img.Width != 50 || img.Height != 50 {
		t.Errorf("image size = %dx%d, want 50x50", img.Width, img.Height)
	}
}

func TestImageClick_NaturalSize(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 0, 0, 500, 500)

	e.pending.Publish(PendingImage{Width: 320, Height: 240, Data: []byte{1}})
	e.session.SetTool(ToolState{Type: ToolImage, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 10, Y: 10, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 10, Y: 10, Target: PointerTarget{FrameID: f.ID}})

	frame, _ := e.frames.GetFrame(f.ID)
	img := frame.Elements[len(frame.Elements)-1]
	if img.Width != 320 || img.Height != 240 {
		t.Errorf("clicked image size = %dx%d, want natural 320x240", img.Width, img.Height)
	}
}

func TestImageOutsideFrame_Aborts(t *testing.T) {
	e := newTestEditor(t, true)

	e.pending.Publish(PendingImage{Width: 100, Height: 100, Data: []byte{1}})
	e.session.SetTool(ToolState{Type: ToolImage, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 10, Y: 10})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 10, Y: 10})

	if len(e.uploader.uploads) != 0 {
		t.Error("aborted image gesture must not upload")
	}
	if len(e.frames.Frames()) != 0 {
		t.Error("no object should be created outside a frame")
	}
}

func TestTransformEnd_MinimumSize(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 0, 0, 200, 200)

	e.controller.TransformEnd(TransformEvent{
		Kind: core.KindFrame, ID: f.ID,
		X: 10, Y: 10, Width: 200, Height: 200,
		ScaleX: 0.01, ScaleY: 0.5,
	})
	got, _ := e.frames.GetFrame(f.ID)
	if got.Width != MinObjectSize {
		t.Errorf("width = %d, want floor %d", got.Width, MinObjectSize)
	}
	if got.Height != 100 {
		t.Errorf("height = %d, want 100", got.Height)
	}
	sel, ok := e.session.Selection()
	if !ok || sel.ID != f.ID {
		t.Error("transform should select the frame")
	}
}

func TestDragEnd_FoldsOffset(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 100, 100, 200, 200)

	e.controller.DragEnd(DragEvent{Kind: core.KindFrame, ID: f.ID, OffsetX: 30.4, OffsetY: -10.6})
	got, _ := e.frames.GetFrame(f.ID)
	if got.X != 130 || got.Y != 89 {
		t.Errorf("position = (%d,%d), want (130,89)", got.X, got.Y)
	}
}

func TestWheel_ZoomSteps(t *testing.T) {
	e := newTestEditor(t, true)

	// Without the modifier nothing happens.
	if _, handled := e.controller.Wheel(WheelEvent{DeltaY: -1}); handled {
		t.Error("wheel without modifier must not zoom")
	}

	vp, handled := e.controller.Wheel(WheelEvent{DeltaY: -1, ModifierHeld: true})
	if !handled || vp.Scale != 1.1 {
		t.Errorf("zoom in from 1.0: scale = %v, want 1.1", vp.Scale)
	}

	vp, _ = e.controller.Wheel(WheelEvent{DeltaY: 1, ModifierHeld: true})
	if vp.Scale != 1.0 {
		t.Errorf("zoom out back: scale = %v, want 1.0", vp.Scale)
	}
}

func TestWheel_ClampsAtBounds(t *testing.T) {
	e := newTestEditor(t, true)

	e.session.SetStageScale(9.99)
	vp, _ := e.controller.Wheel(WheelEvent{DeltaY: -1, ModifierHeld: true})
	if vp.Scale != MaxStageScale {
		t.Errorf("zoom in at max: scale = %v, want %v", vp.Scale, MaxStageScale)
	}

	e.session.SetStageScale(0.10)
	vp, _ = e.controller.Wheel(WheelEvent{DeltaY: 1, ModifierHeld: true})
	if vp.Scale != MinStageScale {
		t.Errorf("zoom out at min: scale = %v, want %v", vp.Scale, MinStageScale)
	}
}

func TestWheel_ZoomToCursorPan(t *testing.T) {
	e := newTestEditor(t, true)
	vp, _ := e.controller.Wheel(WheelEvent{X: 100, Y: 50, DeltaY: -1, ModifierHeld: true, PanX: 0, PanY: 0})

	// Pan keeps the point under the cursor fixed: p - (p - pan)/old*new.
	wantX := 100 - 100/1.0*1.1
	wantY := 50 - 50/1.0*1.1
	if vp.PanX != wantX || vp.PanY != wantY {
		t.Errorf("pan = (%v,%v), want (%v,%v)", vp.PanX, vp.PanY, wantX, wantY)
	}
}

func TestTwoStepTextDeselection(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 0, 0, 400, 300)

	e.session.SetTool(ToolState{Type: ToolText, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 50, Y: 50, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 50, Y: 50, Target: PointerTarget{FrameID: f.ID}})
	sel, _ := e.session.Selection()

	e.frames.UpdateTextValue(f.ID, sel.ID, "hello")
	e.frames.ToggleTextEditing(f.ID, sel.ID, true)
	e.session.SetTool(ToolState{Type: ToolMove, Method: MethodSelected})

	// First empty-canvas click: exit edit mode, keep selection.
	e.controller.PointerDown(PointerEvent{X: 900, Y: 900})
	el, _ := e.frames.GetElement(f.ID, sel.ID)
	if el.BeingEdited {
		t.Error("first click should exit edit mode")
	}
	if _, ok := e.session.Selection(); !ok {
		t.Fatal("first click must keep the selection")
	}

	// Second click deselects.
	e.controller.PointerDown(PointerEvent{X: 900, Y: 900})
	if _, ok := e.session.Selection(); ok {
		t.Error("second click should clear the selection")
	}
}

func TestEmptyTextDeselection_SingleStep(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 0, 0, 400, 300)

	e.session.SetTool(ToolState{Type: ToolText, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 50, Y: 50, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 50, Y: 50, Target: PointerTarget{FrameID: f.ID}})
	sel, _ := e.session.Selection()

	// Edit mode but no text: one click deselects.
	e.frames.ToggleTextEditing(f.ID, sel.ID, true)
	e.session.SetTool(ToolState{Type: ToolMove, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 900, Y: 900})
	if _, ok := e.session.Selection(); ok {
		t.Error("empty text should deselect in a single click")
	}
}

func TestSpaceHandToggle(t *testing.T) {
	e := newTestEditor(t, true)
	ctx := context.Background()

	e.controller.KeyDown(ctx, KeyEvent{Key: " "})
	if tool := e.session.Tool(); tool.Type != ToolHand || tool.Method != MethodToggle {
		t.Errorf("space should toggle hand, got %+v", tool)
	}
	e.controller.KeyUp(KeyEvent{Key: " "})
	if tool := e.session.Tool(); tool.Type != ToolMove {
		t.Errorf("space release should revert to move, got %+v", tool)
	}

	// A selected hand tool does not revert on space release.
	e.session.SetTool(ToolState{Type: ToolHand, Method: MethodSelected})
	e.controller.KeyUp(KeyEvent{Key: " "})
	if tool := e.session.Tool(); tool.Type != ToolHand {
		t.Errorf("selected hand must survive space release, got %+v", tool)
	}
}

func TestSpaceIgnoredWhileDrawing(t *testing.T) {
	e := newTestEditor(t, true)
	e.session.SetTool(ToolState{Type: ToolFrame, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 10, Y: 10})

	e.controller.KeyDown(context.Background(), KeyEvent{Key: " "})
	if tool := e.session.Tool(); tool.Type != ToolFrame {
		t.Errorf("space mid-draw must not switch tools, got %+v", tool)
	}
}

func TestNonPrimaryButton_HandToggle(t *testing.T) {
	e := newTestEditor(t, true)

	e.controller.PointerDown(PointerEvent{X: 10, Y: 10, Button: 1})
	if tool := e.session.Tool(); tool.Type != ToolHand || tool.Method != MethodToggle {
		t.Errorf("middle button should toggle hand, got %+v", tool)
	}
	e.controller.PointerUp(context.Background(), PointerEvent{X: 10, Y: 10, Button: 1})
	if tool := e.session.Tool(); tool.Type != ToolMove {
		t.Errorf("button release should revert to move, got %+v", tool)
	}
}

func TestKeyboardShortcuts_ModeGated(t *testing.T) {
	ctx := context.Background()

	designer := newTestEditor(t, true)
	designer.controller.KeyDown(ctx, KeyEvent{Key: "f"})
	if tool := designer.session.Tool(); tool.Type != ToolFrame {
		t.Errorf("designer f shortcut: got %+v, want frame tool", tool)
	}

	normal := newTestEditor(t, false)
	normal.controller.KeyDown(ctx, KeyEvent{Key: "f"})
	if tool := normal.session.Tool(); tool.Type != ToolMove {
		t.Errorf("normal mode must ignore f, got %+v", tool)
	}

	// v works in every mode.
	normal.session.SetTool(ToolState{Type: ToolHand, Method: MethodSelected})
	normal.controller.KeyDown(ctx, KeyEvent{Key: "v"})
	if tool := normal.session.Tool(); tool.Type != ToolMove {
		t.Errorf("v must work in normal mode, got %+v", tool)
	}
}

func TestKeyboardShortcuts_SuppressedInTextInput(t *testing.T) {
	e := newTestEditor(t, true)
	e.controller.KeyDown(context.Background(), KeyEvent{Key: "f", InTextInput: true})
	if tool := e.session.Tool(); tool.Type != ToolMove {
		t.Errorf("shortcut must not fire inside a text input, got %+v", tool)
	}
}

func TestDrawingToolsIgnoredWhenNotEditable(t *testing.T) {
	e := newTestEditor(t, false)
	e.session.SetTool(ToolState{Type: ToolFrame, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 10, Y: 10})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 10, Y: 10})

	if len(e.frames.Frames()) != 0 {
		t.Error("non-editable session must not create frames")
	}
}

func TestDeleteFrame_AlwaysClearsSelection(t *testing.T) {
	e := newTestEditor(t, true)
	f1 := e.drawFrame(t, 0, 0, 100, 100)
	f2 := e.drawFrame(t, 200, 0, 300, 100)

	// Select f1, delete f2: selection still clears.
	e.controller.SelectObject(SelectionRef{Kind: core.KindFrame, ID: f1.ID})
	e.controller.DeleteFrame(f2.ID)
	if _, ok := e.session.Selection(); ok {
		t.Error("deleting any frame clears the selection")
	}
	if len(e.frames.Frames()) != 1 {
		t.Errorf("expected 1 frame left, got %d", len(e.frames.Frames()))
	}
}

func TestDeleteElement_ReleasesImageAsset(t *testing.T) {
	e := newTestEditor(t, true)
	f := e.drawFrame(t, 0, 0, 500, 500)

	e.pending.Publish(PendingImage{Width: 100, Height: 100, Data: []byte{1}})
	e.session.SetTool(ToolState{Type: ToolImage, Method: MethodSelected})
	e.controller.PointerDown(PointerEvent{X: 10, Y: 10, Target: PointerTarget{FrameID: f.ID}})
	e.controller.PointerUp(context.Background(), PointerEvent{X: 10, Y: 10, Target: PointerTarget{FrameID: f.ID}})
	sel, _ := e.session.Selection()

	e.controller.DeleteElement(context.Background(), f.ID, sel.ID)
	if len(e.uploader.deleted) != 1 {
		t.Errorf("expected 1 asset release, got %d", len(e.uploader.deleted))
	}
	if _, ok := e.session.Selection(); ok {
		t.Error("deleting the selected element clears the selection")
	}
}

func TestDocument_RoundTripThroughController(t *testing.T) {
	e := newTestEditor(t, true)
	e.drawFrame(t, 0, 0, 100, 100)
	e.drawFrame(t, 200, 0, 350, 120)

	doc := e.controller.Document()
	if len(doc.Frames) != 2 {
		t.Fatalf("document has %d frames, want 2", len(doc.Frames))
	}

	e2 := newTestEditor(t, false)
	e2.controller.LoadDocument(doc, DocumentMeta{Editable: false})
	if len(e2.frames.Frames()) != 2 {
		t.Errorf("loaded document has %d frames, want 2", len(e2.frames.Frames()))
	}
	if e2.session.UserMode() != ModeNormal {
		t.Errorf("non-owner load should set normal mode, got %v", e2.session.UserMode())
	}
	if _, ok := e2.session.Selection(); ok {
		t.Error("load must clear the selection")
	}
}

func TestNextName_Sequence(t *testing.T) {
	e := newTestEditor(t, true)
	f1 := e.drawFrame(t, 0, 0, 100, 100)
	f2 := e.drawFrame(t, 200, 0, 300, 100)

	if f1.Name != "Frame 1" || f2.Name != "Frame 2" {
		t.Errorf("frame names = %q, %q; want Frame 1, Frame 2", f1.Name, f2.Name)
	}
}
