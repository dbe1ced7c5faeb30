package workflow

import "jobsift/internal/queue"

type stageRule struct {
	stateKey string
	next     queue.SubStage
}

// inferRules lists, per type, the most advanced state key first.
var inferRules = map[queue.ItemType][]stageRule{
	queue.ItemTypeListing: {
		{queue.StateMatch, queue.StageSave},
		{queue.StateAnalysis, queue.StageSave},
		{queue.StateFilter, queue.StageAnalyze},
		{queue.StateListing, queue.StageFilter},
	},
	queue.ItemTypeOrganization: {
		{queue.StateAnalysis, queue.StageSave},
		{queue.StateProfile, queue.StageAnalyze},
		{queue.StatePage, queue.StageExtract},
	},
	queue.ItemTypeSourceDiscovery: {
		{queue.StateValidation, queue.StageCreate},
		{queue.StateDetection, queue.StageValidate},
	},
}

// InferStage resolves the sub-stage to run for an item. An explicit
// SubStage wins; otherwise the first rule whose state key is present picks
// the stage, falling back to the type's first sub-stage.
func InferStage(item *queue.Item) queue.SubStage {
	if item == nil {
		return ""
	}
	if item.SubStage != "" {
		return item.SubStage
	}
	for _, rule := range inferRules[item.Type] {
		if item.PipelineState.Has(rule.stateKey) {
			return rule.next
		}
	}
	return queue.FirstStage(item.Type)
}
