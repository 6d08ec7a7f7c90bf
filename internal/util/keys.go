package util

// Storage-key builders. The prefixes below form the keyspace owned by
// cacheguard; external writers must stay out of it.

func EntryKey(ns, key string) string { return "entry:" + ns + ":" + key }

func LockKey(ns, key string) string { return "lock:" + ns + ":" + key }

func RateKey(ns, identity string) string { return "rate:" + ns + ":" + identity }
