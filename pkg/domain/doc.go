/*
Package domain contains the core session model shared by every storage backend.

It is kept free of I/O: persistence lives behind the interfaces in package ports and the
adapters that implement them.

# Key Entities

  - SessionData: an identified bag of attributes plus timing metadata.
  - Errors: the sentinel taxonomy (configuration, backend connectivity, corrupt data)
    that every layer wraps with fmt.Errorf and callers match with errors.Is.
*/
package domain
