package mcpserver

// DefinitionFormatContract describes the YAML object definition format that
// LLM consumers should follow when importing definitions.
const DefinitionFormatContract = `# Ansuz Object Definition Format

An object definition file describes one versioned object schema: its
attributes and its methods. Files are YAML, UTF-8, one definition per file.

## Structure

` + "```" + `yaml
name: Customer                 # REQUIRED – 1..100 characters
version: "1.0"                 # REQUIRED – quote it so YAML keeps it a string
description: A paying customer # REQUIRED
attributes:                    # OPTIONAL – the complete attribute list
  - name: email                # REQUIRED
    type: string               # REQUIRED – free-form type name
    description: Contact email # OPTIONAL
    default: unknown           # OPTIONAL
    required: true             # OPTIONAL – defaults to false
methods:                       # OPTIONAL – the complete method list
  - name: save                 # REQUIRED
    visibility: PUBLIC         # OPTIONAL – PUBLIC (default), PRIVATE or PROTECTED
    returns: bool              # OPTIONAL – omit for no return value
    parameters:                # OPTIONAL
      - name: force            # REQUIRED
        type: bool             # REQUIRED
        default: "false"       # OPTIONAL
        optional: true         # OPTIONAL – defaults to false
` + "```" + `

## Rules

1. **(name, version) identifies the object**, compared case-insensitively.
   Importing a file for an existing (name, version) updates that object.
2. **Lists are complete.** Attributes and methods missing from the file are
   deleted from the object on import. Members are matched by name, so a
   renamed member is a delete plus a create.
3. **Parameters are replaced wholesale** every time their method is imported.
4. **Unknown keys are rejected.** Check spelling against the structure above.
5. **No ids.** Never write database ids into a definition file.
6. **File names** end with ` + "`" + `.yaml` + "`" + ` and use lowercase kebab-case,
   e.g. ` + "`" + `customer-1.0.yaml` + "`" + `.
`
