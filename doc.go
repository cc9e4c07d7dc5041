/*
Package evdump renders arbitrary runtime values as nested, tagged text, and
writes whole events from an event store in that form.

We implement:

1. A Printer, which walks a value through the Type/Value/Member/Operation
introspection interfaces and never against concrete Go types.

2. A reflect-backed implementation of those interfaces (TypeOf, ValueOf).

3. Event writers: XMLOutput (a <cmsdata> document) and ASCIIOutput (a short
prescaled summary).

# Output format

Every value becomes a block:

	<PREFIX><type name>">...<SUFFIX>

A builtin scalar fits on one line, e.g. <object type="double">0.5</object>.
Anything else spans several lines, each starting with the current
indentation; nested values are indented by one more Indent step.

**Pointers** print as a container of 0 (nil) or 1 element. The element is an
empty object shell; the pointee's members are not expanded.

**Typedefs**, named types over a builtin kind, print as their underlying
builtin, under the builtin's name.

**Builtins** print with canonical names (int32 is "int", int is "long",
float64 is "double", and so on; see BuiltinName).

**Containers** are types answering either Size/At or Begin/End with an
iterator answering NotEqual/Next/Deref. Slices, arrays and strings are
indexable; maps iterate their entries in key order as Pair values. A
container prints as <container size="N"> holding one object block per
element. If Begin and End return different types, the whole print fails
with a *ShapeError.

**Everything else** prints its data members, bases first, each as
<datamember name="N" type="T">. A member that cannot be read prints a
single line with the reason instead of its block.

# Type names

Type names are escaped (& < >) before they are written. A container whose
type has no name prints as {unknown}.

# Struct tags

Exported struct fields are members, embedded struct fields are bases. A
field tagged edm:"-" or edm:",transient" is skipped.
*/
package evdump
