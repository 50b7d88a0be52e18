package interpreter

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretArraySurroundedByProse(t *testing.T) {
	payload := `[{"box_2d":[100,200,300,400],"family":"Aphididae","genus":"Aphis","possible_species":["Aphis gossypii","Aphis fabae"]},{"label":"beetle","confidence":87}]`

	inputs := []string{
		payload,
		"Here is what I found:\n" + payload + "\nLet me know if you need more.",
		"```json\n" + payload + "\n```",
		"Sure! [see below]\n" + payload,
	}

	for _, in := range inputs {
		res := Interpret(in)
		require.True(t, res.IsStructured(), in)

		detections, ok := res.Structured()
		require.True(t, ok)
		require.Len(t, detections, 2)
		assert.Equal(t, "Aphididae", detections[0].Family)
		assert.Equal(t, "Aphis", detections[0].Genus)
		assert.Equal(t, []string{"Aphis gossypii", "Aphis fabae"}, detections[0].PossibleSpecies)
		assert.Equal(t, "beetle", detections[1].Label)
		require.NotNil(t, detections[1].Confidence)
		assert.InDelta(t, 0.87, *detections[1].Confidence, 1e-9)
		assert.Equal(t, in, res.RawText())
	}
}

func TestInterpretPlainTextStaysRaw(t *testing.T) {
	inputs := []string{
		"I could not identify any insects in this photo.",
		"",
		"The leaf shows damage consistent with caterpillars",
		"Truncated output: [{\"family\": \"Noctuidae\", \"genus\":",
	}

	for _, in := range inputs {
		res := Interpret(in)
		assert.False(t, res.IsStructured(), in)
		assert.Equal(t, KindRaw, res.Kind)
		assert.Empty(t, res.Detections)
		assert.Equal(t, in, res.Raw)

		_, ok := res.Structured()
		assert.False(t, ok)
	}
}

func TestInterpretObjectForms(t *testing.T) {
	single := Interpret(`Result: {"final_species":"Helicoverpa armigera","confidence":0.92,"reasoning":"striped larva"}`)
	require.True(t, single.IsStructured())
	require.Len(t, single.Detections, 1)
	assert.Equal(t, "Helicoverpa armigera", single.Detections[0].Species)
	assert.Equal(t, "striped larva", single.Detections[0].Reasoning)
	assert.InDelta(t, 0.92, *single.Detections[0].Confidence, 1e-9)

	wrapped := Interpret(`{"detections":[{"species":"A b"},{"species":"C d"}]}`)
	require.True(t, wrapped.IsStructured())
	assert.Len(t, wrapped.Detections, 2)

	unknown := Interpret(`{"error":"quota exceeded"}`)
	assert.False(t, unknown.IsStructured())
}

func TestInterpretSingleObjectWithBoxArray(t *testing.T) {
	res := Interpret(`{"box_2d":[500,100,700,300],"family":"Pentatomidae"}`)
	require.True(t, res.IsStructured())
	require.Len(t, res.Detections, 1)
	require.NotNil(t, res.Detections[0].Box)
	assert.Equal(t, Box{X1: 0.1, Y1: 0.5, X2: 0.3, Y2: 0.7}, *res.Detections[0].Box)
}

func TestInterpretObjectWithNestedObjectArray(t *testing.T) {
	refine := Interpret("```json\n" + `{"final_species":"Aphis gossypii","confidence":0.9,"reasoning":"pale cornicles","alternatives":[{"species":"Myzus persicae"}]}` + "\n```")
	require.True(t, refine.IsStructured())
	require.Len(t, refine.Detections, 1)
	assert.Equal(t, "Aphis gossypii", refine.Detections[0].Species)

	entry := Interpret(`{"box_2d":[100,200,300,400],"family":"Aphididae","possible_species":[{"name":"Aphis gossypii"},{"name":"Myzus persicae"}]}`)
	require.True(t, entry.IsStructured())
	require.Len(t, entry.Detections, 1)
	d := entry.Detections[0]
	assert.Equal(t, "Aphididae", d.Family)
	require.NotNil(t, d.Box)
	assert.Equal(t, Box{X1: 0.2, Y1: 0.1, X2: 0.4, Y2: 0.3}, *d.Box)
	assert.Equal(t, []string{"Aphis gossypii", "Myzus persicae"}, d.PossibleSpecies)
}

func TestInterpretSkipsArrayInsideUnrecognisedObject(t *testing.T) {
	res := Interpret(`{"status":"ok","notes":[{"text":"blurry image"}]}`)
	assert.False(t, res.IsStructured())
	assert.Empty(t, res.Detections)
}

func TestPossibleSpeciesIsCapped(t *testing.T) {
	res := Interpret(`[{"possible_species":["a","b","c","d","e","f","g"]}]`)
	require.True(t, res.IsStructured())
	assert.Len(t, res.Detections[0].PossibleSpecies, MaxPossibleSpecies)
}

func TestEmptyArrayIsStructuredWithoutDetections(t *testing.T) {
	res := Interpret("No pests detected: []")
	assert.True(t, res.IsStructured())
	assert.Empty(t, res.Detections)
}

func TestNormalizeBoxIgnoresCornerOrder(t *testing.T) {
	cases := [][4]float64{
		{100, 200, 300, 400},
		{900, 50, 10, 990},
		{0, 0, 1000, 1000},
		{250, 250, 250, 250},
	}
	for _, c := range cases {
		a, b, cc, d := c[0], c[1], c[2], c[3]
		first := NormalizeBox(a, b, cc, d)
		swapped := NormalizeBox(cc, d, a, b)
		assert.Equal(t, first, swapped)
		assert.LessOrEqual(t, first.X1, first.X2)
		assert.LessOrEqual(t, first.Y1, first.Y2)
	}

	assert.Equal(t, Box{X1: 0.1, Y1: 0.2, X2: 0.3, Y2: 0.4}, NormalizeBox(300, 400, 100, 200))
}

func TestBboxOrderIsXY(t *testing.T) {
	res := Interpret(`[{"bbox":[300,400,100,200]}]`)
	require.True(t, res.IsStructured())
	assert.Equal(t, Box{X1: 0.1, Y1: 0.2, X2: 0.3, Y2: 0.4}, *res.Detections[0].Box)
}

func TestConfidenceNormalization(t *testing.T) {
	res := Interpret(`[{"confidence":"85%"},{"confidence":0.5},{"confidence":150},{"confidence":-2}]`)
	require.True(t, res.IsStructured())
	require.Len(t, res.Detections, 4)
	assert.InDelta(t, 0.85, *res.Detections[0].Confidence, 1e-9)
	assert.InDelta(t, 0.5, *res.Detections[1].Confidence, 1e-9)
	assert.InDelta(t, 1.0, *res.Detections[2].Confidence, 1e-9)
	assert.InDelta(t, 0.0, *res.Detections[3].Confidence, 1e-9)
}

func TestExtractJSONPayload(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSONPayload("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1,2]`, ExtractJSONPayload("prefix [1,2] suffix"))
	assert.Equal(t, "plain", ExtractJSONPayload("  plain  "))
	assert.Equal(t, "", ExtractJSONPayload("   "))
}

func TestResultKindMarshalsAsString(t *testing.T) {
	out, err := json.Marshal(Interpret("nothing here"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"kind":"raw"`)
}
