package stream

// SeenWindow is a bounded FIFO set of recently emitted source ids. When full,
// adding a new id evicts the oldest one. Not safe for concurrent use; each
// poll loop owns its own window.
type SeenWindow struct {
	ids  []string
	set  map[string]struct{}
	head int
}

func NewSeenWindow(capacity int) *SeenWindow {
	if capacity <= 0 {
		capacity = 500
	}
	return &SeenWindow{
		ids: make([]string, 0, capacity),
		set: make(map[string]struct{}, capacity),
	}
}

func (w *SeenWindow) Contains(id string) bool {
	_, ok := w.set[id]
	return ok
}

// Add records id. Adding an id already in the window is a no-op.
func (w *SeenWindow) Add(id string) {
	if w.Contains(id) {
		return
	}

	if len(w.ids) < cap(w.ids) {
		w.ids = append(w.ids, id)
		w.set[id] = struct{}{}
		return
	}

	delete(w.set, w.ids[w.head])
	w.ids[w.head] = id
	w.set[id] = struct{}{}
	w.head = (w.head + 1) % len(w.ids)
}

func (w *SeenWindow) Len() int {
	return len(w.set)
}
