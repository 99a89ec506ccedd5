package studio

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reduceAll(s State, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}

func withPhoto() State {
	return Reduce(InitialState(), SetPhoto{URL: "https://cdn.example/photo.jpg"})
}

func TestSetPhotoReinitialises(t *testing.T) {
	s := reduceAll(withPhoto(),
		SelectOperation{Operation: OpCleanBG},
		ProcessingError{Error: "boom"},
	)
	s = Reduce(s, SetPhoto{URL: "new.jpg"})

	assert.Equal(t, "new.jpg", s.OriginalPhotoURL)
	assert.Empty(t, s.Pipeline)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.ResultPhotoURL)
	assert.Equal(t, CanvasOriginal, s.CanvasState)
}

func TestSelectOperationAddOrFocus(t *testing.T) {
	s := reduceAll(withPhoto(),
		SelectOperation{Operation: OpCleanBG},
		SelectOperation{Operation: OpEnhance},
		SetModelWizardStep{Step: 3},
	)
	require.Len(t, s.Pipeline, 2)
	assert.Equal(t, s.Pipeline[1].ID, s.ActiveStepID)

	s = Reduce(s, SelectOperation{Operation: OpCleanBG})
	assert.Len(t, s.Pipeline, 2, "selecting an existing operation must not duplicate it")
	assert.Equal(t, s.Pipeline[0].ID, s.ActiveStepID)
	assert.True(t, s.DrawerOpen)
	assert.Equal(t, 1, s.ModelWizardStep)
}

func TestSelectOperationAddsDefaultParams(t *testing.T) {
	s := Reduce(withPhoto(), SelectOperation{Operation: OpMannequin})
	require.Len(t, s.Pipeline, 1)
	assert.Equal(t, DefaultParams(OpMannequin), s.Pipeline[0].Params)
}

func TestStepIDsAreUnique(t *testing.T) {
	s := reduceAll(withPhoto(),
		AddPipelineStep{Operation: OpCleanBG},
		RemovePipelineStep{ID: "clean_bg-1"},
		AddPipelineStep{Operation: OpCleanBG},
	)
	require.Len(t, s.Pipeline, 1)
	assert.Equal(t, "clean_bg-2", s.Pipeline[0].ID)
}

func TestIllegalAddsAreIgnored(t *testing.T) {
	s := reduceAll(withPhoto(),
		AddPipelineStep{Operation: OpCleanBG},
		AddPipelineStep{Operation: OpCleanBG},
		AddPipelineStep{Operation: OpAIModel},
		SelectOperation{Operation: OpAIModel},
	)
	require.Len(t, s.Pipeline, 1)
	assert.Equal(t, OpCleanBG, s.Pipeline[0].Operation)

	m := reduceAll(withPhoto(),
		SelectOperation{Operation: OpAIModel},
		AddPipelineStep{Operation: OpCleanBG},
		AddPipelineStep{Operation: OpEnhance},
	)
	assert.Equal(t, []Operation{OpAIModel, OpEnhance}, operationsOf(m.Pipeline))
}

func TestPipelineCappedAtFourSteps(t *testing.T) {
	s := withPhoto()
	for _, op := range []Operation{OpCleanBG, OpEnhance, OpDecrease, OpSteam, OpFlatlay} {
		s = Reduce(s, AddPipelineStep{Operation: op})
	}
	assert.Len(t, s.Pipeline, MaxPipelineSteps)
}

func TestRemovePipelineStep(t *testing.T) {
	s := reduceAll(withPhoto(),
		AddPipelineStep{Operation: OpCleanBG},
		AddPipelineStep{Operation: OpEnhance},
		AddPipelineStep{Operation: OpDecrease},
		SetActiveStep{ID: "enhance-2"},
	)

	s = Reduce(s, RemovePipelineStep{ID: "enhance-2"})
	assert.Equal(t, []Operation{OpCleanBG, OpDecrease}, operationsOf(s.Pipeline))
	assert.Equal(t, "decrease-3", s.ActiveStepID)
	assert.True(t, s.DrawerOpen)

	// Removing a non-active step keeps focus
	s = Reduce(s, RemovePipelineStep{ID: "clean_bg-1"})
	assert.Equal(t, "decrease-3", s.ActiveStepID)

	s = Reduce(s, RemovePipelineStep{ID: "decrease-3"})
	assert.Empty(t, s.Pipeline)
	assert.Empty(t, s.ActiveStepID)
	assert.False(t, s.DrawerOpen)
}

func TestUpdateStepParamsOnlyTouchesNamedStep(t *testing.T) {
	s := reduceAll(withPhoto(),
		AddPipelineStep{Operation: OpSteam},
		AddPipelineStep{Operation: OpLifestyleBG},
	)
	before := s

	s = Reduce(s, UpdateStepParams{ID: "steam-1", Params: Params{ParamIntensity: "deep"}})
	assert.Equal(t, "deep", s.Pipeline[0].Params[ParamIntensity])
	assert.Equal(t, DefaultParams(OpLifestyleBG), s.Pipeline[1].Params)

	// Prior state is untouched
	assert.Equal(t, "steam", before.Pipeline[0].Params[ParamIntensity])
}

func TestProcessingLifecycle(t *testing.T) {
	s := reduceAll(withPhoto(),
		AddPipelineStep{Operation: OpCleanBG},
		AddPipelineStep{Operation: OpEnhance},
		ProcessingError{Error: "old"},
		StartProcessing{},
	)
	assert.True(t, s.IsProcessing)
	assert.Equal(t, CanvasProcessing, s.CanvasState)
	assert.Equal(t, 0, s.ProcessingStepIndex)
	assert.Empty(t, s.Error)

	s = Reduce(s, ProcessingStepComplete{StepIndex: 0, ImageURL: "step0.png"})
	assert.Equal(t, 1, s.ProcessingStepIndex)

	s = Reduce(s, ProcessingComplete{ImageURL: "final.png"})
	assert.False(t, s.IsProcessing)
	assert.Equal(t, CanvasResult, s.CanvasState)
	assert.Equal(t, "final.png", s.ResultPhotoURL)
	assert.False(t, s.DrawerOpen)
}

func TestProcessingErrorPreservesConfiguration(t *testing.T) {
	s := reduceAll(withPhoto(),
		AddPipelineStep{Operation: OpCleanBG},
		AddPipelineStep{Operation: OpEnhance},
	)
	pipeline := s.Pipeline

	s = reduceAll(s, StartProcessing{}, ProcessingError{Error: "x"})
	assert.Equal(t, CanvasOriginal, s.CanvasState)
	assert.Empty(t, s.ResultPhotoURL)
	assert.False(t, s.IsProcessing)
	assert.Equal(t, "x", s.Error)
	assert.Equal(t, pipeline, s.Pipeline)
}

func TestSetModelWizardStepClamps(t *testing.T) {
	s := withPhoto()
	assert.Equal(t, 3, Reduce(s, SetModelWizardStep{Step: 7}).ModelWizardStep)
	assert.Equal(t, 1, Reduce(s, SetModelWizardStep{Step: 0}).ModelWizardStep)
	assert.Equal(t, 2, Reduce(s, SetModelWizardStep{Step: 2}).ModelWizardStep)
}

func TestResetKeepsPhoto(t *testing.T) {
	s := reduceAll(withPhoto(),
		AddPipelineStep{Operation: OpCleanBG},
		StartProcessing{},
		ProcessingComplete{ImageURL: "done.png"},
		OpenUpgradeModal{},
		Reset{},
	)
	assert.Equal(t, "https://cdn.example/photo.jpg", s.OriginalPhotoURL)
	assert.Empty(t, s.ResultPhotoURL)
	assert.Empty(t, s.Pipeline)
	assert.Equal(t, CanvasOriginal, s.CanvasState)
	assert.False(t, s.UpgradeModalOpen)

	cleared := Reduce(s, ClearPhoto{})
	assert.Equal(t, InitialState(), cleared)
}

func TestDrawerAndModalToggles(t *testing.T) {
	s := reduceAll(withPhoto(), OpenDrawer{})
	assert.True(t, s.DrawerOpen)
	s = reduceAll(s, CloseDrawer{}, OpenUpgradeModal{})
	assert.False(t, s.DrawerOpen)
	assert.True(t, s.UpgradeModalOpen)
	assert.False(t, Reduce(s, CloseUpgradeModal{}).UpgradeModalOpen)

	s = reduceAll(s, SelectOperation{Operation: OpEnhance}, DeselectOperation{})
	assert.Empty(t, s.ActiveStepID)
	assert.False(t, s.DrawerOpen)
}

// Property: no sequence of SELECT/ADD/REMOVE produces an illegal pipeline.
func TestPipelineLegalityProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		s := withPhoto()
		for i := 0; i < 30; i++ {
			op := Operations[rng.Intn(len(Operations))]
			switch rng.Intn(3) {
			case 0:
				s = Reduce(s, SelectOperation{Operation: op})
			case 1:
				s = Reduce(s, AddPipelineStep{Operation: op})
			case 2:
				if len(s.Pipeline) > 0 {
					s = Reduce(s, RemovePipelineStep{ID: s.Pipeline[rng.Intn(len(s.Pipeline))].ID})
				}
			}
			require.NoError(t, ValidatePipeline(s.Pipeline))
		}
	}
}

func TestDecodeAction(t *testing.T) {
	a, err := DecodeAction([]byte(`{"type":"SELECT_OPERATION","operation":"steam"}`))
	require.NoError(t, err)
	assert.Equal(t, SelectOperation{Operation: OpSteam}, a)

	a, err = DecodeAction([]byte(`{"type":"UPDATE_STEP_PARAMS","id":"steam-1","params":{"intensity":"deep"}}`))
	require.NoError(t, err)
	assert.Equal(t, UpdateStepParams{ID: "steam-1", Params: Params{"intensity": "deep"}}, a)

	a, err = DecodeAction([]byte(`{"type":"RESET"}`))
	require.NoError(t, err)
	assert.Equal(t, Reset{}, a)

	_, err = DecodeAction([]byte(`{"type":"LAUNCH_ROCKET"}`))
	assert.Error(t, err)
	_, err = DecodeAction([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeClientAction(t *testing.T) {
	a, err := DecodeClientAction([]byte(`{"type":"OPEN_DRAWER"}`))
	require.NoError(t, err)
	assert.Equal(t, OpenDrawer{}, a)

	_, err = DecodeClientAction([]byte(`{"type":"PROCESSING_COMPLETE","imageUrl":"x"}`))
	assert.Error(t, err)
	_, err = DecodeClientAction([]byte(`{"type":"START_PROCESSING"}`))
	assert.Error(t, err)
}

func operationsOf(steps []PipelineStep) []Operation {
	ops := make([]Operation, len(steps))
	for i, s := range steps {
		ops[i] = s.Operation
	}
	return ops
}
