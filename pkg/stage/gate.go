package stage

import "github.com/aretw0/contractflow/pkg/core"

// CanEdit reports whether the editor may accept changes. Content is locked in
// send, and in edit or sign while a designer signature stands, unless an
// explicit unlock is in progress. Anything else is editable.
func CanEdit(stage core.Stage, hasDesignerSignature, inUnlockFlow bool) bool {
	switch stage {
	case core.StageSend:
		return false
	case core.StageEdit, core.StageSign:
		return !hasDesignerSignature || inUnlockFlow
	}
	return true
}
