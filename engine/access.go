package engine

import "github.com/questlabs/questledger/model"

// Role guards. The caller's authenticated identity is always passed in
// explicitly; the engine never consults ambient state to decide who is
// calling.

func requireQuestMasterOrGovernor(st *model.EngineState, caller string) error {
	if caller != "" && (caller == st.QuestMaster || caller == st.Governor) {
		return nil
	}
	return ErrAccessDenied
}

func requireGovernor(st *model.EngineState, caller string) error {
	if caller != "" && caller == st.Governor {
		return nil
	}
	return ErrAccessDenied
}
