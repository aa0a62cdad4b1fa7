package prompt

var variantGuidelines = map[Variant]string{
	VariantFindability: `RESPONSE GUIDELINES:
- Provide a helpful, accurate response to the user's query
- When relevant, mention appropriate products/services that could help
- Be objective and focus on actual capabilities and use cases
- Include specific examples or details when possible
- If the focus product is genuinely relevant, include it naturally in your response
- Cite sources or provide links when available`,

	VariantRecommendation: `RESPONSE GUIDELINES:
- Provide balanced recommendations based on the user's specific needs
- Consider different options and their strengths
- Explain why certain options might be better for different use cases
- Be honest about limitations and trade-offs
- Include the focus product if it's genuinely suitable for the user's needs
- Suggest trying multiple options when appropriate`,

	VariantComparison: `RESPONSE GUIDELINES:
- Provide objective comparisons between different options
- Highlight the unique strengths of each product/service
- Explain which might be better for different scenarios
- Be fair and balanced in your assessment
- Include concrete examples of use cases
- Help the user understand the key differentiators`,
}

const competitiveGuidelines = `COMPETITIVE ANALYSIS GUIDELINES:
- Compare the focus product objectively with alternatives
- Highlight unique value propositions and differentiators
- Explain which product might be better for different use cases
- Be fair to all options mentioned
- Focus on helping the user make an informed decision
- Include specific examples of when to choose each option
- Mention any notable advantages or limitations`

// guidelines returns the response-guideline block for a variant.
func guidelines(variant Variant) string {
	if block, ok := variantGuidelines[variant]; ok {
		return block
	}
	return variantGuidelines[VariantFindability]
}
