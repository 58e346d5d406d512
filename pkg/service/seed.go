package service

import (
	"github.com/pkg/errors"

	"github.com/kokoro-ai/taskadmin/pkg/models"
	"github.com/kokoro-ai/taskadmin/pkg/storage"
)

// defaultTemplates are the stock templates installed on a fresh deployment.
var defaultTemplates = []CreateTemplateRequest{
	{
		Name:         "text_lora_new_default",
		Description:  "Default template for new text LoRA training",
		WorkflowType: models.TextLoraCreation,
		WorkflowSpec: models.Document{
			"theme":             "japanese_culture_chat",
			"target_platform":   "mobile",
			"deployment_target": "mobile_app",
			"training_mode":     "new",
			"dataset_spec": map[string]interface{}{
				"source":          "huggingface",
				"repository_id":   "kokoro/japanese-culture-qa-dataset",
				"sample_count":    2000,
				"data_format":     "jsonl",
				"question_column": "question",
				"answer_column":   "answer",
			},
			"training_spec": map[string]interface{}{
				"base_model":      "Qwen/Qwen3-0.6B",
				"lora_rank":       16,
				"lora_alpha":      32,
				"iteration_count": 1000,
				"batch_size":      4,
				"learning_rate":   2e-4,
				"max_length":      512,
			},
		},
	},
	{
		Name:         "text_lora_incremental_default",
		Description:  "Default template for incremental text LoRA training",
		WorkflowType: models.TextLoraCreation,
		WorkflowSpec: models.Document{
			"theme":             "japanese_culture_chat",
			"target_platform":   "mobile",
			"deployment_target": "mobile_app",
			"training_mode":     "incremental",
			"dataset_spec": map[string]interface{}{
				"source":          "huggingface",
				"repository_id":   "kokoro/japanese-culture-qa-dataset-v2",
				"sample_count":    1500,
				"data_format":     "jsonl",
				"question_column": "question",
				"answer_column":   "answer",
			},
			"training_spec": map[string]interface{}{
				"base_model":      "Qwen/Qwen3-0.6B",
				"lora_rank":       16,
				"lora_alpha":      32,
				"iteration_count": 800,
				"batch_size":      4,
				"learning_rate":   1e-4,
				"max_length":      512,
			},
		},
	},
	{
		Name:         "image_lora_new_default",
		Description:  "Default template for new image LoRA training",
		WorkflowType: models.ImageLoraCreation,
		WorkflowSpec: models.Document{
			"theme":             "manga_style",
			"target_platform":   "executor",
			"deployment_target": "executor_node",
			"training_mode":     "new",
			"dataset_spec": map[string]interface{}{
				"source":         "huggingface",
				"repository_id":  "kokoro/manga-style-dataset",
				"sample_count":   200,
				"image_column":   "image",
				"caption_column": "text",
			},
			"training_spec": map[string]interface{}{
				"base_model":      "black-forest-labs/FLUX.1-dev",
				"lora_rank":       16,
				"lora_alpha":      32,
				"iteration_count": 1000,
				"batch_size":      2,
				"learning_rate":   1e-4,
				"resolution":      []interface{}{512, 768},
			},
		},
	},
	{
		Name:         "image_lora_incremental_default",
		Description:  "Default template for incremental image LoRA training",
		WorkflowType: models.ImageLoraCreation,
		WorkflowSpec: models.Document{
			"theme":             "manga_style",
			"target_platform":   "executor",
			"deployment_target": "executor_node",
			"training_mode":     "incremental",
			"dataset_spec": map[string]interface{}{
				"source":         "huggingface",
				"repository_id":  "kokoro/manga-style-dataset-v2",
				"sample_count":   150,
				"image_column":   "image",
				"caption_column": "text",
			},
			"training_spec": map[string]interface{}{
				"base_model":      "black-forest-labs/FLUX.1-dev",
				"lora_rank":       16,
				"lora_alpha":      32,
				"iteration_count": 800,
				"batch_size":      2,
				"learning_rate":   5e-5,
				"resolution":      []interface{}{512, 768},
			},
		},
	},
}

// SeedDefaults installs the stock templates, skipping any whose name already
// exists. Safe to run on every startup.
func (s *TemplateService) SeedDefaults(operator string) error {
	for _, req := range defaultTemplates {
		req.Operator = operator
		if _, err := s.Create(req); err != nil {
			if errors.Is(err, storage.ErrDuplicateName) {
				continue
			}
			return errors.Wrapf(err, "seed template %q", req.Name)
		}
		s.logger.Infof("Seeded default template '%s'", req.Name)
	}
	return nil
}
