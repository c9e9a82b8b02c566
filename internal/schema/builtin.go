package schema

// builtinDescriptors returns the compiled-in descriptors so the pipeline
// runs without an external schemas directory. A schemas dir, when given,
// replaces these entirely.
func builtinDescriptors() []*Descriptor {
	entryV1 := &Descriptor{
		Kind:    KindEntry,
		Version: "1",
		Fields: []Field{
			{Name: "@context", Type: TypeString},
			{Name: "@type", Type: TypeString},
			{Name: "@id", Type: TypeString, Required: true},
			{Name: "schema_version", Type: TypeString, Required: true},
			{Name: "tier", Type: TypeString, Required: true,
				Enum: []string{"gold", "silver", "bronze", "red", "black"}},
			{Name: "label", Type: TypeString, Required: true,
				Enum: []string{"PASS", "AMBER", "FAIL"}},
			{Name: "gate_results", Type: TypeObject, Required: true},
			{Name: "gate_results.phi", Type: TypeString, Required: true, Enum: []string{"PASS", "FAIL"}},
			{Name: "gate_results.r", Type: TypeString, Required: true, Enum: []string{"PASS", "FAIL"}},
			{Name: "gate_results.j", Type: TypeScoreOrMask, Required: true},
			{Name: "gate_results.k", Type: TypeString, Required: true, Enum: []string{"PASS", "FAIL"}},
			{Name: "gate_results.l", Type: TypeString, Required: true, Enum: []string{"PASS", "FAIL"}},
			{Name: "policy_fingerprint", Type: TypeString, Required: true},
			{Name: "policy_refs", Type: TypeObject, Required: true},
			{Name: "policy_refs.tel5_levels", Type: TypeObject},
			{Name: "policy_refs.monte_carlo", Type: TypeObject},
			{Name: "policy_refs.journal_trust", Type: TypeObject},
		},
	}

	// v2 adds intervention_type and deprecates the free-form category
	// field tolerated in v1 corpora
	entryV2 := &Descriptor{
		Kind:    KindEntry,
		Version: "2",
		Fields:  append([]Field{}, entryV1.Fields...),
	}
	entryV2.Fields = append(entryV2.Fields,
		Field{Name: "intervention_type", Type: TypeString, Required: true,
			Enum: []string{"supplement", "behavioral", "device", "dietary", "other"}},
		Field{Name: "category", Type: TypeString, Deprecated: true},
	)

	simulationV1 := &Descriptor{
		Kind:    KindSimulation,
		Version: "1",
		Fields: []Field{
			{Name: "seed", Type: TypeInteger},
			{Name: "n_draws", Type: TypeInteger, Required: true},
			{Name: "P_effect_gt_delta", Type: TypeNumber, Required: true},
			{Name: "mu_hat", Type: TypeNumber},
			{Name: "mu_CI95", Type: TypeArray},
			{Name: "I2", Type: TypeNumber},
			{Name: "tau2", Type: TypeNumber},
			{Name: "policy_fingerprint", Type: TypeString},
		},
	}

	citationsV1 := &Descriptor{
		Kind:    KindCitations,
		Version: "1",
		Fields: []Field{
			{Name: "studies", Type: TypeArray, Required: true},
		},
	}

	return []*Descriptor{entryV1, entryV2, simulationV1, citationsV1}
}
