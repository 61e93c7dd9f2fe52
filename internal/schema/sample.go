package schema

import (
	"math/rand/v2"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

const (
	sampleStringLength = 10
	sampleIntLimit     = 100
	sampleArrayLength  = 3
	sampleLetters      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// Sample builds a random document shaped like def. Every field is present.
// A nil rnd uses a randomly seeded source.
func Sample(def *model.ModelDefinition, rnd *rand.Rand) *jsonvalue.Object {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return sampleObject(def.Fields, rnd)
}

func sampleObject(fields []model.FieldDefinition, rnd *rand.Rand) *jsonvalue.Object {
	obj := jsonvalue.NewObject()
	for i := range fields {
		f := &fields[i]
		obj.Set(f.Name, sampleValue(f.Type, f, rnd))
	}
	return obj
}

func sampleValue(ft model.FieldType, f *model.FieldDefinition, rnd *rand.Rand) jsonvalue.Value {
	switch ft {
	case model.FieldTypeString:
		b := make([]byte, sampleStringLength)
		for i := range b {
			b[i] = sampleLetters[rnd.IntN(len(sampleLetters))]
		}
		return jsonvalue.String(b)
	case model.FieldTypeInteger:
		return jsonvalue.Integer(rnd.IntN(sampleIntLimit))
	case model.FieldTypeBoolean:
		return jsonvalue.Bool(rnd.IntN(2) == 1)
	case model.FieldTypeObject:
		return sampleObject(f.NestedFields, rnd)
	case model.FieldTypeArray:
		arr := make(jsonvalue.Array, sampleArrayLength)
		for i := range arr {
			if f.ElementType == model.FieldTypeArray {
				arr[i] = jsonvalue.Array{}
				continue
			}
			arr[i] = sampleValue(f.ElementType, f, rnd)
		}
		return arr
	}
	return jsonvalue.Null{}
}
