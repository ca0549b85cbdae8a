package coordinator

import (
	"encoding/json"

	"github.com/webkin/webkin/kinematictree"
)

// SceneInit is sent once per client at connection time and to every client
// whenever the tree itself is reloaded.
type SceneInit struct {
	Type       string                             `json:"type"`
	Nodes      map[string]kinematictree.SceneNode `json:"nodes"`
	Joints     []string                           `json:"joints"`
	JointsInfo map[string]kinematictree.JointInfo `json:"jointsInfo"`
	ZUp        bool                               `json:"zUp"`
}

// SceneUpdate is sent on every joint update or calibration change.
type SceneUpdate struct {
	Type       string                             `json:"type"`
	Nodes      map[string]kinematictree.SceneNode `json:"nodes"`
	JointsInfo map[string]kinematictree.JointInfo `json:"jointsInfo"`
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
