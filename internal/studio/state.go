package studio

import "strconv"

// PipelineStep is one configured operation instance.
type PipelineStep struct {
	ID        string    `json:"id"`
	Operation Operation `json:"operation"`
	Params    Params    `json:"params"`
}

// CanvasState is the derived display state of the editor canvas.
type CanvasState string

const (
	CanvasOriginal   CanvasState = "original"
	CanvasProcessing CanvasState = "processing"
	CanvasResult     CanvasState = "result"
)

// State is a Photo Studio session. Empty strings stand for "no value" in the
// URL, step id and error fields.
type State struct {
	OriginalPhotoURL    string         `json:"originalPhotoUrl,omitempty"`
	ResultPhotoURL      string         `json:"resultPhotoUrl,omitempty"`
	CanvasState         CanvasState    `json:"canvasState"`
	Pipeline            []PipelineStep `json:"pipeline"`
	ActiveStepID        string         `json:"activeStepId,omitempty"`
	DrawerOpen          bool           `json:"drawerOpen"`
	IsProcessing        bool           `json:"isProcessing"`
	ProcessingStepIndex int            `json:"processingStepIndex"`
	Error               string         `json:"error,omitempty"`
	ModelWizardStep     int            `json:"modelWizardStep"`
	UpgradeModalOpen    bool           `json:"upgradeModalOpen"`

	// NextStepSeq numbers new steps so ids stay unique without a clock.
	NextStepSeq int `json:"nextStepSeq"`
}

// InitialState is the state of a studio session before any photo is loaded.
func InitialState() State {
	return State{
		CanvasState:     CanvasOriginal,
		Pipeline:        []PipelineStep{},
		ModelWizardStep: 1,
		NextStepSeq:     1,
	}
}

// ActiveStep returns the step whose editor is open, if any.
func (s State) ActiveStep() (PipelineStep, bool) {
	return s.step(s.ActiveStepID)
}

// Credits is the cost of running the current pipeline.
func (s State) Credits() int {
	return PipelineCredits(s.Pipeline)
}

func (s State) step(id string) (PipelineStep, bool) {
	if id == "" {
		return PipelineStep{}, false
	}
	for _, st := range s.Pipeline {
		if st.ID == id {
			return st, true
		}
	}
	return PipelineStep{}, false
}

func (s State) clonePipeline() []PipelineStep {
	out := make([]PipelineStep, len(s.Pipeline))
	for i, st := range s.Pipeline {
		out[i] = PipelineStep{ID: st.ID, Operation: st.Operation, Params: st.Params.Clone()}
	}
	return out
}

// newStep appends a fresh step for op and returns the new state and id.
func (s State) newStep(op Operation) (State, string) {
	id := string(op) + "-" + strconv.Itoa(s.NextStepSeq)
	s.Pipeline = append(s.clonePipeline(), PipelineStep{
		ID:        id,
		Operation: op,
		Params:    DefaultParams(op),
	})
	s.NextStepSeq++
	return s, id
}

// Action is a Photo Studio state transition.
type Action interface {
	studioAction()
}

type (
	SetPhoto struct {
		URL string `json:"url"`
	}
	ClearPhoto      struct{}
	SelectOperation struct {
		Operation Operation `json:"operation"`
	}
	DeselectOperation struct{}
	AddPipelineStep   struct {
		Operation Operation `json:"operation"`
	}
	RemovePipelineStep struct {
		ID string `json:"id"`
	}
	SetActiveStep struct {
		ID string `json:"id"`
	}
	UpdateStepParams struct {
		ID     string `json:"id"`
		Params Params `json:"params"`
	}
	OpenDrawer             struct{}
	CloseDrawer            struct{}
	StartProcessing        struct{}
	ProcessingStepComplete struct {
		StepIndex int    `json:"stepIndex"`
		ImageURL  string `json:"imageUrl"`
	}
	ProcessingComplete struct {
		ImageURL string `json:"imageUrl"`
	}
	ProcessingError struct {
		Error string `json:"error"`
	}
	SetModelWizardStep struct {
		Step int `json:"step"`
	}
	Reset             struct{}
	OpenUpgradeModal  struct{}
	CloseUpgradeModal struct{}
)

func (SetPhoto) studioAction()               {}
func (ClearPhoto) studioAction()             {}
func (SelectOperation) studioAction()        {}
func (DeselectOperation) studioAction()      {}
func (AddPipelineStep) studioAction()        {}
func (RemovePipelineStep) studioAction()     {}
func (SetActiveStep) studioAction()          {}
func (UpdateStepParams) studioAction()       {}
func (OpenDrawer) studioAction()             {}
func (CloseDrawer) studioAction()            {}
func (StartProcessing) studioAction()        {}
func (ProcessingStepComplete) studioAction() {}
func (ProcessingComplete) studioAction()     {}
func (ProcessingError) studioAction()        {}
func (SetModelWizardStep) studioAction()     {}
func (Reset) studioAction()                  {}
func (OpenUpgradeModal) studioAction()       {}
func (CloseUpgradeModal) studioAction()      {}

// Reduce applies a to s and returns the next state. It performs no I/O and
// never mutates s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetPhoto:
		next := InitialState()
		next.OriginalPhotoURL = a.URL
		return next

	case ClearPhoto:
		return InitialState()

	case SelectOperation:
		for _, st := range s.Pipeline {
			if st.Operation == a.Operation {
				s.ActiveStepID = st.ID
				s.DrawerOpen = true
				s.ModelWizardStep = 1
				return s
			}
		}
		if !CanAppend(s.Pipeline, a.Operation) {
			return s
		}
		next, id := s.newStep(a.Operation)
		next.ActiveStepID = id
		next.DrawerOpen = true
		next.ModelWizardStep = 1
		return next

	case DeselectOperation:
		s.ActiveStepID = ""
		s.DrawerOpen = false
		return s

	case AddPipelineStep:
		if !CanAppend(s.Pipeline, a.Operation) {
			return s
		}
		next, id := s.newStep(a.Operation)
		next.ActiveStepID = id
		next.DrawerOpen = true
		return next

	case RemovePipelineStep:
		pipeline := make([]PipelineStep, 0, len(s.Pipeline))
		for _, st := range s.clonePipeline() {
			if st.ID != a.ID {
				pipeline = append(pipeline, st)
			}
		}
		active := s.ActiveStepID
		if active == a.ID {
			active = ""
			if len(pipeline) > 0 {
				active = pipeline[len(pipeline)-1].ID
			}
		}
		s.Pipeline = pipeline
		s.ActiveStepID = active
		s.DrawerOpen = active != "" && s.DrawerOpen
		return s

	case SetActiveStep:
		if _, ok := s.step(a.ID); !ok {
			return s
		}
		s.ActiveStepID = a.ID
		s.DrawerOpen = true
		return s

	case UpdateStepParams:
		pipeline := s.clonePipeline()
		for i := range pipeline {
			if pipeline[i].ID == a.ID {
				pipeline[i].Params = pipeline[i].Params.Merge(a.Params)
			}
		}
		s.Pipeline = pipeline
		return s

	case OpenDrawer:
		s.DrawerOpen = true
		return s

	case CloseDrawer:
		s.DrawerOpen = false
		return s

	case StartProcessing:
		s.IsProcessing = true
		s.ProcessingStepIndex = 0
		s.CanvasState = CanvasProcessing
		s.Error = ""
		return s

	case ProcessingStepComplete:
		s.ProcessingStepIndex = a.StepIndex + 1
		return s

	case ProcessingComplete:
		s.IsProcessing = false
		s.CanvasState = CanvasResult
		s.ResultPhotoURL = a.ImageURL
		s.DrawerOpen = false
		return s

	case ProcessingError:
		s.IsProcessing = false
		s.CanvasState = CanvasOriginal
		s.ResultPhotoURL = ""
		s.Error = a.Error
		return s

	case SetModelWizardStep:
		s.ModelWizardStep = min(max(a.Step, 1), 3)
		return s

	case Reset:
		next := InitialState()
		next.OriginalPhotoURL = s.OriginalPhotoURL
		return next

	case OpenUpgradeModal:
		s.UpgradeModalOpen = true
		return s

	case CloseUpgradeModal:
		s.UpgradeModalOpen = false
		return s
	}
	return s
}
