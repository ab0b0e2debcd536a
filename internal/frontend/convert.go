package frontend

import (
	"modernc.org/cc/v4"

	"github.com/phobologic/abilib/internal/ctype"
)

var predefinedNames = map[cc.Kind]string{
	cc.Bool:       "_Bool",
	cc.Char:       "char",
	cc.SChar:      "signed char",
	cc.UChar:      "unsigned char",
	cc.Short:      "short",
	cc.UShort:     "unsigned short",
	cc.Int:        "int",
	cc.UInt:       "unsigned int",
	cc.Long:       "long",
	cc.ULong:      "unsigned long",
	cc.LongLong:   "long long",
	cc.ULongLong:  "unsigned long long",
	cc.Float:      "float",
	cc.Double:     "double",
	cc.LongDouble: "long double",
	cc.Int128:     "__int128",
	cc.UInt128:    "unsigned __int128",
	cc.Float16:    "_Float16",
	cc.Float128:   "_Float128",
	cc.Decimal32:  "_Decimal32",
	cc.Decimal64:  "_Decimal64",
	cc.Decimal128: "_Decimal128",
}

// converter maps cc types to descriptors. Record definitions are built
// once per tag.
type converter struct {
	defs map[string]*ctype.RecordDef
}

func newConverter() *converter {
	return &converter{defs: make(map[string]*ctype.RecordDef)}
}

func (c *converter) signature(ft *cc.FunctionType) (*ctype.Signature, error) {
	params := ft.Parameters()
	if len(params) == 0 && !ft.IsVariadic() {
		return nil, ctype.Unrepresentable("function declared without a prototype")
	}
	if len(params) == 1 && params[0].Type().Kind() == cc.Void {
		params = nil
	}

	result, err := c.convert(ft.Result(), true)
	if err != nil {
		return nil, err
	}
	sig := &ctype.Signature{Result: result, Variadic: ft.IsVariadic()}
	for _, p := range params {
		t, err := c.convert(p.Type(), true)
		if err != nil {
			return nil, err
		}
		sig.Params = append(sig.Params, ctype.Param{Name: p.Name(), Type: t})
	}
	return sig, nil
}

// convert maps t. byValue is set where the value itself is passed, so that
// record layouts are needed.
func (c *converter) convert(t cc.Type, byValue bool) (*ctype.Type, error) {
	if t == nil {
		return nil, ctype.Unrepresentable("missing type")
	}
	if t.VectorSize() > 0 {
		return nil, ctype.Unrepresentable("vector type %s has no portable calling convention", t)
	}
	attrs := t.Attributes()

	switch x := t.(type) {
	case *cc.PredefinedType:
		if x.Kind() == cc.Void {
			return ctype.VoidType().WithQualifiers(attrs.IsConst(), attrs.IsVolatile()), nil
		}
		name, ok := predefinedNames[x.Kind()]
		if !ok {
			return nil, ctype.Unrepresentable("type %s has no portable calling convention", t)
		}
		if err := ctype.CheckBuiltin(name); err != nil {
			return nil, err
		}
		return ctype.BuiltinType(name).WithQualifiers(attrs.IsConst(), attrs.IsVolatile()), nil
	case *cc.PointerType:
		elem, err := c.convert(x.Elem(), false)
		if err != nil {
			return nil, err
		}
		return ctype.PointerTo(elem).WithQualifiers(attrs.IsConst(), attrs.IsVolatile()), nil
	case *cc.ArrayType:
		if x.IsVLA() {
			return nil, ctype.Unrepresentable("variable length array")
		}
		elem, err := c.convert(x.Elem(), byValue)
		if err != nil {
			return nil, err
		}
		n := x.Len()
		if x.IsIncomplete() {
			n = -1
		}
		return &ctype.Type{Kind: ctype.Array, Elem: elem, Len: n}, nil
	case *cc.FunctionType:
		sig, err := c.signature(x)
		if err != nil {
			return nil, err
		}
		return ctype.FunctionOf(sig), nil
	case *cc.EnumType:
		u, err := c.convert(x.UnderlyingType(), byValue)
		if err != nil {
			return nil, err
		}
		return u.WithQualifiers(attrs.IsConst(), attrs.IsVolatile()), nil
	case *cc.StructType:
		tag := x.Tag()
		return c.record(ctype.Struct, tag.SrcStr(), x, x.NumFields(), x.FieldByIndex, byValue)
	case *cc.UnionType:
		tag := x.Tag()
		return c.record(ctype.Union, tag.SrcStr(), x, x.NumFields(), x.FieldByIndex, byValue)
	}
	return nil, ctype.Unrepresentable("unsupported type %s", t)
}

func (c *converter) record(kind ctype.RecordKind, tag string, t cc.Type, numFields int, field func(int) *cc.Field, byValue bool) (*ctype.Type, error) {
	if tag == "" {
		if td := t.Typedef(); td != nil {
			tag = td.Name()
		}
	}
	if tag == "" {
		return nil, ctype.Unrepresentable("anonymous %s", kind)
	}
	attrs := t.Attributes()
	rt := ctype.RecordType(kind, tag).WithQualifiers(attrs.IsConst(), attrs.IsVolatile())
	if !byValue {
		return rt, nil
	}
	if t.IsIncomplete() {
		return nil, ctype.Unrepresentable("incomplete %s %s passed by value", kind, tag)
	}

	key := string(kind) + " " + tag
	if def, ok := c.defs[key]; ok {
		rt.Def = def
		return rt, nil
	}
	def := &ctype.RecordDef{Kind: kind, Tag: tag}
	if attrs != nil {
		def.Packed = attrs.IsAttrSet("packed") || attrs.IsAttrSet("__packed__")
		if a := attrs.Aligned(); a > 0 {
			def.Align = int(a)
		}
	}
	c.defs[key] = def
	for i := 0; i < numFields; i++ {
		f := field(i)
		if f == nil {
			continue
		}
		ft, err := c.convert(f.Type(), true)
		if err != nil {
			delete(c.defs, key)
			return nil, err
		}
		fd := ctype.Field{Name: f.Name(), Type: ft}
		if f.IsBitfield() {
			fd.Bits = int(f.ValueBits())
		}
		def.Fields = append(def.Fields, fd)
	}
	rt.Def = def
	return rt, nil
}
