// Package domain contains the core business entities, value objects, and
// domain logic of the application: tasks, users, departments, and the caller
// identity that visibility and mutation rights are derived from. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
