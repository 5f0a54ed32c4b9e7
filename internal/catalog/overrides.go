package catalog

// Override merge rules, per field:
//
//	Field            Rule
//	-----            ----
//	Topics           array union (base first, override appended, de-duplicated)
//	Tone             array union
//	ToneAdjustment   scalar replace when non-empty
//	Commentary       recurse: MinWords/MaxWords replace when > 0
//
// The merge is pure: the cached base config is never mutated.

// ApplyOverrides layers the season override and then the holiday override
// onto a copy of the base config. A nil override is a no-op. The holiday
// override wins over the seasonal one where both set the same scalar.
func ApplyOverrides(base *ShowConfig, season, holiday *Override) ShowConfig {
	merged := *base
	// Copy slices so appends below never alias the cached base.
	merged.Tone = append([]string(nil), base.Tone...)
	merged.TopicsPrimary = append([]string(nil), base.TopicsPrimary...)
	merged.TopicsBanned = append([]string(nil), base.TopicsBanned...)

	for _, ov := range []*Override{season, holiday} {
		if ov == nil {
			continue
		}
		merged.TopicsPrimary = unionStrings(merged.TopicsPrimary, ov.Topics)
		merged.Tone = unionStrings(merged.Tone, ov.Tone)
		if ov.ToneAdjustment != "" {
			merged.Tone = unionStrings(merged.Tone, []string{ov.ToneAdjustment})
		}
		if ov.Commentary != nil {
			merged.Commentary = mergeCommentary(merged.Commentary, *ov.Commentary)
		}
	}
	return merged
}

// SeasonOverride returns the show's override for the given season, if any.
func (s *ShowConfig) SeasonOverride(season string) *Override {
	if ov, ok := s.Seasonal[season]; ok {
		return &ov
	}
	return nil
}

// HolidayOverride returns the show's override for the given holiday, if any.
func (s *ShowConfig) HolidayOverride(holiday string) *Override {
	if holiday == "" {
		return nil
	}
	if ov, ok := s.Holiday[holiday]; ok {
		return &ov
	}
	return nil
}

// unionStrings appends items from add that are not already present,
// preserving order: base entries first, new override entries after.
func unionStrings(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base)+len(add))
	for _, v := range base {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func mergeCommentary(base, ov CommentaryPolicy) CommentaryPolicy {
	if ov.MinWords > 0 {
		base.MinWords = ov.MinWords
	}
	if ov.MaxWords > 0 {
		base.MaxWords = ov.MaxWords
	}
	return base
}
