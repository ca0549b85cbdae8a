package calibration

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/webkin/webkin/kinematictree"
	"github.com/webkin/webkin/logging"
)

// Override is the partial set of calibration fields a user has explicitly
// set for one joint. A nil field means "use the tree's declared value or
// the type default."
type Override struct {
	AxisOffset *float64 `json:"axis_offset,omitempty"`
	AxisScale  *float64 `json:"axis_scale,omitempty"`
	SliderMin  *float64 `json:"slider_min,omitempty"`
	SliderMax  *float64 `json:"slider_max,omitempty"`
}

// merge writes o's set fields onto dst, leaving dst's other fields alone.
func (o Override) merge(dst Override) Override {
	if o.AxisOffset != nil {
		dst.AxisOffset = o.AxisOffset
	}
	if o.AxisScale != nil {
		dst.AxisScale = o.AxisScale
	}
	if o.SliderMin != nil {
		dst.SliderMin = o.SliderMin
	}
	if o.SliderMax != nil {
		dst.SliderMax = o.SliderMax
	}
	return dst
}

// Store is the persisted joint_name -> Override map, loaded from and saved
// to a JSON file on disk. It is not safe for concurrent use; the scene
// coordinator's lock serializes all access.
type Store struct {
	path      string
	overrides map[string]Override
	logger    logging.Logger
}

// New returns a Store backed by path, with an empty override map. Call
// Load to populate it from disk.
func New(path string, logger logging.Logger) *Store {
	return &Store{path: path, overrides: map[string]Override{}, logger: logger}
}

// Path returns the file this store persists to.
func (s *Store) Path() string {
	return s.path
}

// Load reads the overrides file if present. A missing file is not an
// error; the store is left with an empty map. A parse error is logged and
// the store is left with whatever it already held (empty, on first load).
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "read axis overrides file")
	}
	var parsed map[string]Override
	if err := json.Unmarshal(data, &parsed); err != nil {
		s.logger.Warnw("overrides file is malformed, ignoring on-disk state", "path", s.path, "error", err)
		return nil
	}
	s.overrides = parsed
	return nil
}

// Save atomically overwrites the overrides file, creating its parent
// directory if needed.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create overrides directory")
	}
	data, err := json.MarshalIndent(s.overrides, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal overrides")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".axis_overrides-*.json")
	if err != nil {
		return errors.Wrap(err, "create temp overrides file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "write temp overrides file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "close temp overrides file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "rename temp overrides file into place")
	}
	return nil
}

// ApplyTo writes every held override onto the matching joint in tree.
// Names absent from the tree are left in the map untouched (tree shapes
// change over time; a later reload may reintroduce the name).
func (s *Store) ApplyTo(tree *kinematictree.Tree) {
	for name, ov := range s.overrides {
		joint, ok := tree.Joint(name)
		if !ok {
			continue
		}
		applyOverride(joint, ov)
	}
}

func applyOverride(joint *kinematictree.Node, ov Override) {
	if ov.AxisOffset != nil {
		joint.AxisOffset = *ov.AxisOffset
	}
	if ov.AxisScale != nil {
		joint.AxisScale = *ov.AxisScale
	}
	if ov.SliderMin != nil {
		joint.SliderMin = *ov.SliderMin
	}
	if ov.SliderMax != nil {
		joint.SliderMax = *ov.SliderMax
	}
}

// SetZero reads the named joint's current coord and sets axis_offset to its
// negation, so θ_eff at the current physical position becomes zero. The
// change is written into both the joint and the override map, then
// persisted. Unknown names are a no-op.
func (s *Store) SetZero(tree *kinematictree.Tree, name string) error {
	joint, ok := tree.Joint(name)
	if !ok {
		return nil
	}
	offset := -joint.Coord
	return s.SetOverride(tree, name, Override{AxisOffset: &offset})
}

// SetOverride partially merges ov into the stored override for name and
// applies it to the joint, then persists. Unknown names are a no-op.
func (s *Store) SetOverride(tree *kinematictree.Tree, name string, ov Override) error {
	joint, ok := tree.Joint(name)
	if !ok {
		return nil
	}
	merged := ov.merge(s.overrides[name])
	s.overrides[name] = merged
	applyOverride(joint, merged)
	return s.Save()
}

// ClearAll empties the override map, persists, and restores every joint in
// tree to the values declared in originalDoc (or type defaults).
func (s *Store) ClearAll(tree *kinematictree.Tree, originalDoc *kinematictree.NodeDoc) error {
	s.overrides = map[string]Override{}
	if err := s.Save(); err != nil {
		return err
	}
	for _, name := range tree.JointNames() {
		restoreDeclared(tree, originalDoc, name)
	}
	return nil
}

// ClearOne removes a single override, persists, and restores that joint's
// declared values.
func (s *Store) ClearOne(tree *kinematictree.Tree, originalDoc *kinematictree.NodeDoc, name string) error {
	delete(s.overrides, name)
	if err := s.Save(); err != nil {
		return err
	}
	restoreDeclared(tree, originalDoc, name)
	return nil
}

func restoreDeclared(tree *kinematictree.Tree, originalDoc *kinematictree.NodeDoc, name string) {
	joint, ok := tree.Joint(name)
	if !ok {
		return
	}
	info, ok := kinematictree.FindOriginalAxisParams(originalDoc, name)
	if !ok {
		return
	}
	joint.AxisOffset = info.AxisOffset
	joint.AxisScale = info.AxisScale
	joint.SliderMin = info.SliderMin
	joint.SliderMax = info.SliderMax
}

// Snapshot returns a copy of the current override map, suitable for
// serving GET /api/axis/overrides.
func (s *Store) Snapshot() map[string]Override {
	out := make(map[string]Override, len(s.overrides))
	for k, v := range s.overrides {
		out[k] = v
	}
	return out
}
