package synthesis

import (
	"fmt"
	"strings"

	"coachly/internal/core"
)

const systemPromptBase = `You are an expert AI learning coach with deep expertise in educational theory and first-principles thinking. Your role is to help learners understand complex AI/ML concepts by:

1. **First-Principles Thinking**: Break down concepts to their fundamentals before building up
2. **Feynman Technique**: Explain as if teaching someone without prior knowledge, then add depth
3. **Practical Application**: Always connect theory to real-world implementation
4. **Active Learning**: Provide actionable takeaways, not just passive information
5. **Source Fidelity**: Maintain accuracy to source material while synthesizing

Educational Principles:
- Start with "WHY" before "HOW" - motivation drives understanding
- Use analogies only when they clarify, never when they obscure
- Prefer concrete examples over abstract descriptions
- Connect new concepts to prior knowledge explicitly
- Highlight common misconceptions and pitfalls
- Provide progressive disclosure: overview -> details -> nuances

Quality Standards:
- Every insight must be grounded in the provided source material
- Citations must be accurate and specific
- Explanations must be self-contained (understandable without external references)
- Practical takeaways must be immediately actionable
- Tone should match the learner's level (avoid condescension or overwhelming jargon)`

const systemPromptStrictSuffix = `

STRICT MODE ACTIVATED:
- Be extremely precise and accurate - no speculation beyond source material
- Reduce creativity in explanations - stick closely to source content
- Emphasize source fidelity above all else
- If uncertain about any detail, omit rather than infer
- Double-check all technical claims against source material`

// buildSystemPrompt returns the coach persona, with stricter grounding
// guidelines added for retry attempts.
func buildSystemPrompt(stricter bool) string {
	if stricter {
		return systemPromptBase + systemPromptStrictSuffix
	}
	return systemPromptBase
}

// buildUserPrompt assembles the full synthesis request: learning context,
// query, retrieved content, task description, and the JSON output schema.
func buildUserPrompt(contextText string, learningCtx core.LearningContext, query string, numInsights int) string {
	week := "N/A"
	if learningCtx.CurrentWeek > 0 {
		week = fmt.Sprintf("%d", learningCtx.CurrentWeek)
	}

	topics := "AI and Machine Learning"
	if len(learningCtx.CurrentTopics) > 0 {
		topics = strings.Join(learningCtx.CurrentTopics, ", ")
	}

	difficulty := string(learningCtx.DifficultyLevel)
	if difficulty == "" {
		difficulty = string(core.DifficultyIntermediate)
	}

	goal := learningCtx.LearningGoals
	if goal == "" {
		goal = "General AI/ML learning"
	}

	return fmt.Sprintf(`# Learning Context

**Current Week**: %s
**Topics**: %s
**Level**: %s
**Goal**: %s

# Search Query
%s

# Retrieved Content

%s

# Task

Generate **%d** personalized learning insights based on the content above and tailored to my learning context.

For each insight, provide:

1. **Title**: Concise, specific title (max 100 characters)
2. **Relevance Reason**: Brief explanation of why this insight matters for my current learning (50-100 words)
3. **Explanation**: Main educational content using first-principles approach (300-500 words)
   - Start with fundamentals (the "why")
   - Build up to implementation (the "how")
   - Include concrete examples
   - Connect to my learning goals
   - Highlight key takeaways
4. **Practical Takeaway**: One actionable item I can do immediately (50-100 words)
   - Should be specific and concrete
   - Should align with my skill level
   - Should advance toward my learning goal
5. **Source Attribution**: Full source details (title, author, URL, date)

# Output Format

Return a JSON object matching this exact schema:

`+"```json"+`
{
  "insights": [
    {
      "title": "string (max 100 chars)",
      "relevance_reason": "string (50-100 words)",
      "explanation": "string (300-500 words, first-principles approach)",
      "practical_takeaway": "string (50-100 words, actionable)",
      "source": {
        "title": "string (exact source title)",
        "author": "string",
        "url": "string (full URL)",
        "published_date": "YYYY-MM-DD"
      },
      "metadata": {
        "confidence": 0.0-1.0,
        "estimated_read_time": integer (minutes),
        "difficulty_level": "beginner|intermediate|advanced",
        "tags": ["array", "of", "relevant", "tags"]
      }
    }
  ]
}
`+"```"+`

IMPORTANT:
- Return ONLY valid JSON, no additional text
- Ensure all %d insights are unique and cover different aspects
- Base all content strictly on the provided sources
- Match explanation depth to my %s level
- Make practical takeaways specific to my goal: "%s"
`, week, topics, difficulty, goal, query, contextText, numInsights, numInsights, difficulty, goal)
}

// buildContextText formats the retrieved chunks as numbered source blocks.
func buildContextText(chunks []core.RankedChunk) string {
	var b strings.Builder
	for i, chunk := range chunks {
		title := chunk.ContentTitle
		if title == "" {
			title = "Untitled"
		}
		author := chunk.ContentAuthor
		if author == "" {
			author = "Unknown"
		}
		url := chunk.ContentURL
		if url == "" {
			url = "N/A"
		}

		fmt.Fprintf(&b, `## Source %d: %s

**Author**: %s
**URL**: %s
**Published**: %s
**Relevance Score**: %.3f

### Content:
%s

---
`, i+1, title, author, url, chunk.PublishedAt.Format("2006-01-02"), chunk.Similarity, chunk.ChunkText)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
