package ai

import (
	"regexp"
	"strings"

	"github.com/M7mdkimoo/myrockai/internal/models"
)

// Dispatch is the operation class a request resolves to.
type Dispatch int

const (
	DispatchText Dispatch = iota
	DispatchImageEdit
	DispatchImageGen
	DispatchVideoGen
)

func (d Dispatch) String() string {
	switch d {
	case DispatchImageEdit:
		return "image-edit"
	case DispatchImageGen:
		return "image-gen"
	case DispatchVideoGen:
		return "video-gen"
	default:
		return "text"
	}
}

var (
	imageGenIntent = regexp.MustCompile(`\b(draw|generate|create)\b.*\b(image|logo|icon|picture)\b`)
	editIntent     = regexp.MustCompile(`\b(edit|change|remove|add)\b`)
	videoGenIntent = regexp.MustCompile(`\b(animate|generate|create)\b.*\b(video|animation)\b`)
)

type intentRule struct {
	name     string
	dispatch Dispatch
	matches  func(msg string, category models.ServiceCategory, attachments []models.FileAttachment) bool
}

// intentRules is the selection policy, evaluated in order with first match
// winning. Anything unmatched falls through to plain text generation.
var intentRules = []intentRule{
	{
		name:     "design edit with source image",
		dispatch: DispatchImageEdit,
		matches: func(msg string, category models.ServiceCategory, attachments []models.FileAttachment) bool {
			return category == models.CategoryDesign &&
				editIntent.MatchString(msg) &&
				firstAttachment(attachments, "image/") != nil
		},
	},
	{
		name:     "design image generation",
		dispatch: DispatchImageGen,
		matches: func(msg string, category models.ServiceCategory, attachments []models.FileAttachment) bool {
			return category == models.CategoryDesign &&
				imageGenIntent.MatchString(msg) &&
				firstAttachment(attachments, "image/") == nil
		},
	},
	{
		name:     "video generation",
		dispatch: DispatchVideoGen,
		matches: func(msg string, category models.ServiceCategory, attachments []models.FileAttachment) bool {
			return category == models.CategoryVideo && videoGenIntent.MatchString(msg)
		},
	},
}

// Classify resolves a message to its dispatch class.
func Classify(message string, category models.ServiceCategory, attachments []models.FileAttachment) Dispatch {
	msg := strings.ToLower(message)
	for _, rule := range intentRules {
		if rule.matches(msg, category, attachments) {
			return rule.dispatch
		}
	}
	return DispatchText
}

// firstAttachment returns the first attachment whose MIME type carries the
// given prefix, or nil.
func firstAttachment(attachments []models.FileAttachment, mimePrefix string) *models.FileAttachment {
	for i := range attachments {
		if strings.HasPrefix(attachments[i].MIME, mimePrefix) {
			return &attachments[i]
		}
	}
	return nil
}

// shortMessageLimit routes trivial text-category prompts to the lite model.
const shortMessageLimit = 20

// textPlan is the resolved model and tool selection for a text request.
type textPlan struct {
	model          string
	thinkingBudget int32
	useSearchTool  bool
	useMapsTool    bool
}

// planText applies the text-generation policy in priority order: deep
// reasoning, grounding tools, cheap short replies, then attachment-driven
// upgrades.
func (s *Service) planText(message string, category models.ServiceCategory, opts Options, attachments []models.FileAttachment) textPlan {
	msg := strings.ToLower(message)
	plan := textPlan{model: s.models.chat}

	switch {
	case opts.ThinkingMode:
		plan.model = s.models.reasoning
		plan.thinkingBudget = 1024
	case category == models.CategoryAnalysis || category == models.CategoryWebData ||
		strings.Contains(msg, "search") || strings.Contains(msg, "map"):
		if strings.Contains(msg, "map") || strings.Contains(msg, "location") {
			plan.useMapsTool = true
		} else {
			plan.useSearchTool = true
		}
	case category == models.CategoryText && len(msg) < shortMessageLimit:
		plan.model = s.models.lite
	case firstAttachment(attachments, "video/") != nil:
		plan.model = s.models.reasoning
	}
	return plan
}
