package ir

import "strings"

// Kind identifies a node's operator, qualified by namespace
// (e.g. "aten::add", "prim::If"). Operators outside the prim and aten
// namespaces are foreign: no aliasing guarantees exist for them.
type Kind string

// Structural and built-in node kinds.
const (
	If                  Kind = "prim::If"
	Loop                Kind = "prim::Loop"
	FusionGroup         Kind = "prim::FusionGroup"
	DifferentiableGraph Kind = "prim::DifferentiableGraph"
	GradOf              Kind = "prim::GradOf"
	Fork                Kind = "prim::fork"
	Wait                Kind = "aten::wait"
	Constant            Kind = "prim::Constant"
	AutogradZero        Kind = "prim::AutogradZero"
	AutogradAdd         Kind = "prim::AutogradAdd"
	FusedConcat         Kind = "prim::FusedConcat"
	BroadcastSizes      Kind = "prim::BroadcastSizes"
	ChunkSizes          Kind = "prim::ChunkSizes"
	CreateObject        Kind = "prim::CreateObject"
	TupleConstruct      Kind = "prim::TupleConstruct"
	ListConstruct       Kind = "prim::ListConstruct"
	DictConstruct       Kind = "prim::DictConstruct"
	TupleUnpack         Kind = "prim::TupleUnpack"
	TupleIndex          Kind = "prim::TupleIndex"
	TupleSlice          Kind = "prim::TupleSlice"
	ListUnpack          Kind = "prim::ListUnpack"
	DictIndex           Kind = "prim::DictIndex"
	GetAttr             Kind = "prim::GetAttr"
	SetAttr             Kind = "prim::SetAttr"
	ConstantChunk       Kind = "prim::ConstantChunk"
	BroadcastingChunk   Kind = "prim::BroadcastingChunk"
	CallFunction        Kind = "prim::CallFunction"
	Print               Kind = "prim::Print"
)

// Namespace returns the namespace part of the kind, or "" if unqualified.
func (k Kind) Namespace() string {
	if i := strings.Index(string(k), "::"); i >= 0 {
		return string(k)[:i]
	}
	return ""
}

// Base returns the kind without its namespace qualifier.
func (k Kind) Base() string {
	if i := strings.Index(string(k), "::"); i >= 0 {
		return string(k)[i+2:]
	}
	return string(k)
}

// IsPrim reports whether k is a structural (prim) operator.
func (k Kind) IsPrim() bool { return k.Namespace() == "prim" }

// IsAten reports whether k is a built-in (aten) operator.
func (k Kind) IsAten() bool { return k.Namespace() == "aten" }

// IsBuiltin reports whether k belongs to a built-in namespace. Everything
// else is a custom operator with no schema guarantees.
func (k Kind) IsBuiltin() bool { return k.IsPrim() || k.IsAten() }
