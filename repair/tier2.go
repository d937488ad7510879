package repair

import (
	"go.jacobcolvin.com/foundry/compose"
	"go.jacobcolvin.com/foundry/diag"
	"go.jacobcolvin.com/foundry/schema"
	"go.jacobcolvin.com/foundry/validator"
)

// applyTier2 handles structural, guarded corrections. Returns false when
// no Tier-2 rule matches.
func (r *repairer) applyTier2(root *any, e validator.ErrorObject, validate validator.ValidateFunc) bool {
	switch e.Keyword {
	case "required":
		return r.addRequired(root, e)

	case "additionalProperties":
		return r.renameOffenders(root, e, validate)
	}

	return false
}

// addRequired inserts minimal values for the node's missing required
// properties.
func (r *repairer) addRequired(root *any, e validator.ErrorObject) bool {
	node := r.schemaAt(e.InstancePath)
	if node == nil || len(node.Required) == 0 {
		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	obj, ok := v.(*schema.Object)
	if !ok {
		return false
	}

	var added []string

	for _, name := range sortedRequired(node.Required) {
		if _, present := obj.Get(name); present {
			continue
		}

		value := minimalValue(node.Properties[name])
		if value == nil && node.Properties[name] == nil {
			// No schema for the name: a minimal object-typed value.
			value = schema.NewObject()
		}

		obj.Set(name, value)
		added = append(added, name)
	}

	if len(added) == 0 {
		return false
	}

	r.record(2, e, map[string]any{"added": added})

	return true
}

// renameOffenders renames extra keys under additionalProperties:false when
// the plan's coverage index makes the legal name set decidable. Offenders
// rename in UTF-16 code-point order; targets are assigned round-robin from
// the unused legal names. Every rename must pass a preflight that rejects
// newly-introduced dependent or branch errors.
func (r *repairer) renameOffenders(root *any, e validator.ErrorObject, validate validator.ValidateFunc) bool {
	node := r.schemaAt(e.InstancePath)
	if node == nil {
		return false
	}

	decider := r.plan.Coverage[node.CanonPath]
	if decider == nil {
		if node.HasComposition() {
			r.diags = append(r.diags, diag.New(diag.CodeMustCoverIndexMissing, node.CanonPath,
				map[string]any{"instancePath": e.InstancePath}))

			return true
		}

		return false
	}

	v, ok := getAt(*root, e.InstancePath)
	if !ok {
		return false
	}

	obj, ok := v.(*schema.Object)
	if !ok {
		return false
	}

	if decider.Source == "propertyNames.pattern" {
		r.diags = append(r.diags, diag.New(diag.CodeRepairPNamesPatternEnum, node.CanonPath,
			map[string]any{"names": decider.Names}))
	}

	offenders := offenderKeys(obj, decider)
	targets := unusedTargets(obj, decider)

	baseline := errorFingerprints(validate, *root)

	var renamed []map[string]string

	targetIdx := 0

	for _, offender := range offenders {
		if targetIdx >= len(targets) {
			break
		}

		target := targets[targetIdx]

		candidate := schema.Clone(*root)

		candidateObj, okCand := getAt(candidate, e.InstancePath)
		if !okCand {
			break
		}

		cObj, okObj := candidateObj.(*schema.Object)
		if !okObj {
			break
		}

		cObj.Rename(offender, target)

		if reason, rejected := preflightReject(validate, candidate, baseline); rejected {
			r.diags = append(r.diags, diag.New(diag.CodeRepairRenamePreflightFail, node.CanonPath,
				map[string]any{"from": offender, "to": target, "reason": reason}))

			continue
		}

		obj.Rename(offender, target)
		renamed = append(renamed, map[string]string{"from": offender, "to": target})

		targetIdx++
	}

	if len(renamed) == 0 {
		return true
	}

	r.record(2, e, map[string]any{"renamed": renamed})

	return true
}

// offenderKeys returns the object's illegal keys in UTF-16 code-point
// order.
func offenderKeys(obj *schema.Object, decider *compose.NameDecider) []string {
	var out []string

	for _, key := range obj.Keys() {
		if !decider.Has(key) {
			out = append(out, key)
		}
	}

	sortUTF16InPlace(out)

	return out
}

// unusedTargets returns legal names not yet present on the object.
func unusedTargets(obj *schema.Object, decider *compose.NameDecider) []string {
	var out []string

	for _, name := range decider.Names {
		if _, present := obj.Get(name); !present {
			out = append(out, name)
		}
	}

	return out
}

// preflightReject validates a candidate tree and reports whether the
// rename introduced a new dependentRequired/dependentSchemas/oneOf error
// relative to the baseline.
func preflightReject(validate validator.ValidateFunc, candidate any, baseline map[string]bool) (string, bool) {
	ok, errs := validate(candidate)
	if ok {
		return "", false
	}

	for _, e := range errs {
		key := errFingerprint(e)
		if baseline[key] {
			continue
		}

		switch e.Keyword {
		case "dependentRequired", "dependentSchemas", "dependencies":
			return "dependent", true
		case "oneOf":
			return "branch", true
		}
	}

	return "", false
}

// errorFingerprints indexes a validation result for baseline comparison.
func errorFingerprints(validate validator.ValidateFunc, tree any) map[string]bool {
	out := make(map[string]bool)

	_, errs := validate(tree)
	for _, e := range errs {
		out[errFingerprint(e)] = true
	}

	return out
}

func errFingerprint(e validator.ErrorObject) string {
	return e.InstancePath + "|" + e.Keyword
}

func sortedRequired(names []string) []string {
	out := append([]string{}, names...)
	sortUTF16InPlace(out)

	return out
}

// sortUTF16InPlace orders names by UTF-16 code units.
func sortUTF16InPlace(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && utf16Less(names[j], names[j-1]); j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// utf16Less compares strings by UTF-16 code units, placing
// supplementary-plane runes (surrogate pairs) before U+E000..U+FFFF.
func utf16Less(a, b string) bool {
	ar := []rune(a)
	br := []rune(b)

	for i := 0; i < len(ar) && i < len(br); i++ {
		au := utf16Unit(ar[i])

		bu := utf16Unit(br[i])
		if au != bu {
			return au < bu
		}

		// Equal high surrogates: the low surrogates follow code point order.
		if ar[i] != br[i] {
			return ar[i] < br[i]
		}
	}

	return len(ar) < len(br)
}

func utf16Unit(r rune) uint32 {
	if r < 0x10000 {
		return uint32(r)
	}

	return 0xD800 + uint32((r-0x10000)>>10)
}
