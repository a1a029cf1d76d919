package property_test

import (
	"testing"

	"github.com/pasqal-io/dynprops/property"
	"gotest.tools/v3/assert"
)

type Vec3 struct {
	X, Y, Z float32
}

type Path struct {
	Points []Vec3
	hidden int
}

func (p Path) Clone() Path {
	points := make([]Vec3, len(p.Points))
	copy(points, p.Points)
	return Path{Points: points, hidden: p.hidden}
}

var _ property.Cloner[Path] = Path{} //nolint:exhaustruct

func TestBoxBasics(t *testing.T) {
	box := property.New("Vec3", Vec3{X: 1, Y: 2, Z: 3})
	assert.Equal(t, box.TypeName(), "Vec3")
	assert.Equal(t, box.Get(), Vec3{X: 1, Y: 2, Z: 3})

	value, ok := property.Downcast[Vec3](box)
	assert.Assert(t, ok)
	assert.Equal(t, value.Y, float32(2))

	_, ok = property.Downcast[string](box)
	assert.Assert(t, !ok)
	_, ok = property.Downcast[Vec3](nil)
	assert.Assert(t, !ok)
}

func TestBoxEqual(t *testing.T) {
	a := property.New("Path", Path{Points: []Vec3{{X: 1}}, hidden: 3})
	b := property.New("Path", Path{Points: []Vec3{{X: 1}}, hidden: 3})
	c := property.New("Path", Path{Points: []Vec3{{X: 1}}, hidden: 4})
	d := property.New("Other", Path{Points: []Vec3{{X: 1}}, hidden: 3})

	assert.Assert(t, a.Equal(b))
	assert.Assert(t, !a.Equal(c), "unexported fields take part in equality")
	assert.Assert(t, !a.Equal(d), "type names take part in equality")
	assert.Assert(t, !a.Equal(property.New("Path", 3)))
	assert.Assert(t, property.Equal(nil, nil))
	assert.Assert(t, !property.Equal(a, nil))
}

func TestBoxCloneUsesCloner(t *testing.T) {
	original := property.New("Path", Path{Points: []Vec3{{X: 1}}})
	clone, ok := original.Clone().(*property.Box[Path])
	assert.Assert(t, ok)
	clone.Get().Points[0].X = 42
	assert.Equal(t, original.Get().Points[0].X, float32(1), "Cloner should have deep-copied the slice")
}

func TestBoxCloneWithoutCloner(t *testing.T) {
	original := property.New("Vec3", Vec3{X: 1})
	clone := original.Clone()
	assert.Assert(t, clone.Equal(original))
	assert.NilError(t, clone.Apply(property.New("Vec3", Vec3{X: 2})))
	assert.Equal(t, original.Get().X, float32(1), "applying to a clone should leave the original alone")
}

func TestBoxApply(t *testing.T) {
	box := property.New("Vec3", Vec3{})
	assert.NilError(t, box.Apply(property.New("Vec3", Vec3{Z: 5})))
	assert.Equal(t, box.Get().Z, float32(5))

	err := box.Apply(property.New("float32", float32(5)))
	assert.ErrorContains(t, err, "cannot apply a float32")

	assert.ErrorContains(t, box.Apply(nil), "cannot apply nil to a Vec3")
	assert.Equal(t, box.Get().Z, float32(5))
}

func TestDynamicPropertiesMap(t *testing.T) {
	bag := property.NewMap("Transform")
	assert.NilError(t, bag.Set("translation", property.New("Vec3", Vec3{X: 1})))
	assert.NilError(t, bag.Set("scale", property.New("float32", float32(2))))
	assert.NilError(t, bag.Set("translation", property.New("Vec3", Vec3{X: 3})))

	assert.Equal(t, bag.Kind(), property.KindMap)
	assert.Equal(t, bag.Len(), 2)
	assert.DeepEqual(t, bag.Names(), []string{"translation", "scale"})

	translation, ok := bag.Get("translation")
	assert.Assert(t, ok)
	value, _ := property.Downcast[Vec3](translation)
	assert.Equal(t, value.X, float32(3), "replacing an entry keeps its position")
	assert.Equal(t, bag.At(1).TypeName(), "float32")
	assert.Assert(t, bag.At(2) == nil)

	_, ok = bag.Get("rotation")
	assert.Assert(t, !ok)
}

func TestDynamicPropertiesSeq(t *testing.T) {
	bag := property.NewSeq("")
	bag.Push(property.New("int", 1))
	bag.Push(property.New("int", 2))
	assert.DeepEqual(t, bag.Names(), []string{"0", "1"})
	assert.NilError(t, bag.Set("1", property.New("int", 3)))
	assert.NilError(t, bag.Set("2", property.New("int", 4)))
	assert.ErrorContains(t, bag.Set("7", property.New("int", 5)), "sequence of length 3")

	entries := bag.Entries()
	assert.Equal(t, len(entries), 3)
	assert.Equal(t, entries[1].Value.Any(), 3)
}

func TestDynamicPropertiesCloneAndEqual(t *testing.T) {
	bag := property.NewMap("Transform")
	assert.NilError(t, bag.Set("path", property.New("Path", Path{Points: []Vec3{{X: 1}}})))

	clone := bag.Clone()
	assert.Assert(t, bag.Equal(clone))
	assert.Assert(t, clone.Equal(bag))

	other := property.NewMap("Other")
	assert.NilError(t, other.Set("path", property.New("Path", Path{Points: []Vec3{{X: 1}}})))
	assert.Assert(t, !bag.Equal(other))
	assert.Assert(t, !bag.Equal(property.NewSeq("Transform")))
}

func TestDynamicPropertiesApply(t *testing.T) {
	target := property.NewMap("Transform")
	assert.NilError(t, target.Set("translation", property.New("Vec3", Vec3{X: 1})))

	patch := property.NewMap("")
	assert.NilError(t, patch.Set("translation", property.New("Vec3", Vec3{X: 9})))
	assert.NilError(t, patch.Set("scale", property.New("float32", float32(2))))

	assert.NilError(t, target.Apply(patch))
	assert.DeepEqual(t, target.Names(), []string{"translation", "scale"})
	translation, _ := target.Get("translation")
	assert.Equal(t, translation.Any(), Vec3{X: 9})

	mismatch := property.NewMap("")
	assert.NilError(t, mismatch.Set("translation", property.New("float32", float32(1))))
	assert.ErrorContains(t, target.Apply(mismatch), "at entry translation")

	assert.ErrorContains(t, target.Apply(property.NewSeq("")), "cannot apply a seq")
	assert.ErrorContains(t, target.Apply(property.New("int", 1)), "cannot apply a int")
	assert.ErrorContains(t, target.Apply(nil), "cannot apply nil")
	var missing *property.DynamicProperties
	assert.ErrorContains(t, target.Apply(missing), "cannot apply a nil DynamicProperties")
}

// Pushing onto a map whose next position is already a name keeps names unique.
func TestDynamicPropertiesPushOntoMap(t *testing.T) {
	bag := property.NewMap("")
	assert.NilError(t, bag.Set("1", property.New("int", 1)))
	bag.Push(property.New("int", 2))

	assert.DeepEqual(t, bag.Names(), []string{"1"})
	assert.Equal(t, bag.Len(), 1)
	value, ok := bag.Get("1")
	assert.Assert(t, ok)
	assert.Equal(t, value.Any(), 2)
	assert.Equal(t, len(bag.Entries()), 1)

	assert.NilError(t, bag.Set("x", property.New("int", 3)))
	bag.Push(property.New("int", 4))
	assert.DeepEqual(t, bag.Names(), []string{"1", "x", "2"})
}
