package ai

import (
	"fmt"

	"github.com/M7mdkimoo/myrockai/internal/models"
)

// systemInstruction returns the persona attached to text generation for a
// category. Unknown categories get the generalist editor persona.
func systemInstruction(category models.ServiceCategory) string {
	switch category {
	case models.CategoryProgramming:
		return "You are an expert Senior Software Engineer. Provide clean, efficient, and well-documented code."
	case models.CategoryDesign:
		return "You are a world-class Creative Director and UI/UX Designer. You can generate images and edit them."
	case models.CategoryVideo:
		return "You are a professional Video Editor and Cinematographer. You can generate videos and animate images."
	case models.CategoryAnalysis:
		return "You are a Lead Data Analyst. Be precise, analytical, and data-driven. Look for patterns and insights."
	case models.CategoryWebData:
		return "You are an expert Full-Stack Developer and Data Scientist. You specialize in building responsive websites, interactive dashboards, and insightful data presentations."
	case models.CategoryModeling3D:
		return "You are a professional 3D Artist. You specialize in 3D modeling, texturing, rendering, and spatial design concepts."
	default:
		return "You are a professional Editor and Content Strategist. Focus on clarity, tone, and engagement."
	}
}

// estimatePrompt builds the fixed-format pricing prompt for pool requests.
func estimatePrompt(title, description string, category models.ServiceCategory) string {
	return fmt.Sprintf(`Estimate price and scope for: %s Task. Title: %s. Desc: %s. Format: "Estimate: $X-$Y. Scope: ..."`,
		category, title, description)
}
