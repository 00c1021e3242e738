// Package core centralizes the domain contracts shared by every hirewire
// component: jobs, messages, events, the error taxonomy and the external
// capability interfaces (payment, reply generation, confirmation).
//
// Keeping these types in one leaf package prevents higher layers (client,
// bus, lifecycle) from depending on each other's concrete implementations;
// they all speak core types instead.
package core
