// Package rbac is the role and permission catalog.
//
// # Model
//
// Permissions are plain names ("read", "team.invite") within a guard. A role
// is a named set of permissions and is either global or defined for a single
// team; a team role shadows a global role of the same name inside that team.
//
// Users can be assigned roles and can be granted permissions directly. Both
// kinds of assignment are either global or bound to a team:
//
//	catalog := rbac.NewCatalog(db, rbac.WithCache(rbac.NewLRUCache(1024, time.Minute, metrics)))
//	_, _ = catalog.CreateRole(ctx, "editor", nil, "read", "create", "update")
//	_ = catalog.AssignRole(ctx, userID, "editor", &teamID)
//	ok, _ := catalog.HasPermissionTo(ctx, userID, "update", &teamID)
//
// # Wildcards
//
// PermissionSet.Has treats "*" as every permission and "posts.*" as every
// permission starting with "posts.". Team owners are reported with the
// synthetic OwnerRole, which carries "*".
//
// # Caching
//
// Resolved permission sets can be cached in process (LRUCache) or in Redis
// (RedisCache). Every write through the Catalog flushes the cache.
//
// # Seeding
//
// ApplySeed installs global roles from YAML. DefaultSeed holds the built-in
// admin and editor roles.
package rbac
